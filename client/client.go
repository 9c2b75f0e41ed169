// Package client is a blocking relay client: every frame sent is relayed back to all
// connected clients, the sender included.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fzft/go-frame-relay/frame"
)

const DefaultMaxPayload = 64 << 20

type Client struct {
	conn       net.Conn
	r          *bufio.Reader
	mu         sync.Mutex // serializes writers
	maxPayload uint64
}

// Dial connects to a relay at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn:       conn,
		r:          bufio.NewReader(conn),
		maxPayload: DefaultMaxPayload,
	}
}

// Send writes payload as one frame. Safe for concurrent use with Receive.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := frame.WriteFrame(c.conn, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Receive blocks until the next relayed frame arrives.
func (c *Client) Receive() ([]byte, error) {
	return frame.ReadFrame(c.r, c.maxPayload)
}

// ReceiveTimeout is Receive bounded by d.
func (c *Client) ReceiveTimeout(d time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return c.Receive()
}

func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
