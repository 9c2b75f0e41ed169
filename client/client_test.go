package client

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/fzft/go-frame-relay/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWritesFrame(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(local)
	defer c.Close()

	errc := make(chan error, 1)
	go func() { errc <- c.Send([]byte("ping")) }()

	got, err := frame.ReadFrame(remote, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), got)
	require.NoError(t, <-errc)
}

func TestReceiveSkipsEmptyFrames(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(local)
	defer c.Close()

	go func() {
		remote.Write(frame.Encode(nil))
		remote.Write(frame.Encode([]byte("pong")))
	}()

	got, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), got)
}

func TestReceiveTimeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(local)
	defer c.Close()

	_, err := c.ReceiveTimeout(20 * time.Millisecond)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestReceiveClosed(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	defer c.Close()
	remote.Close()

	_, err := c.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = Dial(ctx, addr)
	assert.Error(t, err)
}
