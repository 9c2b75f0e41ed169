package cmd

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fzft/go-frame-relay/config"
	"github.com/fzft/go-frame-relay/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startServer(t *testing.T) *node.Server {
	t.Helper()
	s, err := node.NewServer("127.0.0.1:0", node.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Run() }()
	t.Cleanup(func() {
		s.Shutdown()
		<-done
	})
	return s
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})
	require.NoError(t, root.Execute())
	assert.Equal(t, relayVersion+"\n", out.String())
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, relayVersion, Version("unknown", "unknown"))
	assert.Equal(t, relayVersion+" (git:1a2b3c4d)", Version("1a2b3c4d", "0"))
	assert.Equal(t, relayVersion+" (git:1a2b3c4d-dirty)", Version("1a2b3c4d", "1"))
}

func TestGetDotfilePath(t *testing.T) {
	t.Setenv("HOME", "/home/relay")
	t.Setenv(RelayCliHisFileEnv, "")
	assert.Equal(t, "/home/relay/"+RelayCliHisFileDefault, getDotfilePath(RelayCliHisFileEnv, RelayCliHisFileDefault))

	t.Setenv(RelayCliHisFileEnv, "/tmp/hist")
	assert.Equal(t, "/tmp/hist", getDotfilePath(RelayCliHisFileEnv, RelayCliHisFileDefault))

	t.Setenv(RelayCliHisFileEnv, "/dev/null")
	assert.Empty(t, getDotfilePath(RelayCliHisFileEnv, RelayCliHisFileDefault))
}

func TestSkipFields(t *testing.T) {
	assert.Equal(t, "b  c", skipFields("a b  c", 1))
	assert.Equal(t, "c", skipFields("  a\tb c", 2))
	assert.Empty(t, skipFields("a", 1))
	assert.Equal(t, "a b", skipFields("a b", 0))
}

func TestFormatPayload(t *testing.T) {
	assert.Equal(t, "plain text", formatPayload([]byte("plain text")))
	assert.Equal(t, `"\xff\x00"`, formatPayload([]byte{0xff, 0x00}))
}

func TestSendCommandWait(t *testing.T) {
	s := startServer(t)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"send", "--addr", s.Addr().String(), "--wait", "hello", "relay"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "hello relay\n", out.String())
}

func TestSendCommandStdin(t *testing.T) {
	s := startServer(t)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetIn(strings.NewReader("from stdin"))
	root.SetArgs([]string{"send", "-a", s.Addr().String(), "-w"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "from stdin\n", out.String())
}

func TestSendRejectsEmpty(t *testing.T) {
	root := NewRootCmd()
	root.SetIn(strings.NewReader(""))
	root.SetArgs([]string{"send"})
	assert.Error(t, root.Execute())
}

func TestCliPipedInput(t *testing.T) {
	s := startServer(t)
	host, port := splitAddr(t, s.Addr().String())

	var out, errOut bytes.Buffer
	cli := NewRelayCli(host, port, &out, &errOut)
	cli.config.linger = 200 * time.Millisecond

	require.NoError(t, cli.Run(strings.NewReader("hello\n2 again\nsend   spaced  out\n")))
	assert.Equal(t, "hello\nagain\nagain\nspaced  out\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestCliHandleLine(t *testing.T) {
	var out, errOut bytes.Buffer
	cli := NewRelayCli("127.0.0.1", 1, &out, &errOut)

	assert.True(t, cli.handleLine("quit"))
	assert.True(t, cli.handleLine("  EXIT "))
	assert.False(t, cli.handleLine("   "))

	assert.False(t, cli.handleLine("help"))
	assert.Contains(t, out.String(), "connect <host> <port>")

	out.Reset()
	assert.False(t, cli.handleLine("-1 hello"))
	assert.Contains(t, out.String(), "Invalid relay-cli repeat")

	out.Reset()
	assert.False(t, cli.handleLine("connect localhost notaport"))
	assert.Contains(t, out.String(), "Invalid port number")

	assert.False(t, cli.handleLine("hello"))
	assert.Contains(t, errOut.String(), "not connected")
}

func TestCliConnectSwitchesRelay(t *testing.T) {
	first := startServer(t)
	second := startServer(t)
	host, port := splitAddr(t, first.Addr().String())

	var out, errOut bytes.Buffer
	cli := NewRelayCli(host, port, &out, &errOut)
	require.NoError(t, cli.connect(0))
	defer cli.disconnect()

	host2, port2 := splitAddr(t, second.Addr().String())
	cli.handleLine("connect " + host2 + " " + strconv.Itoa(port2))
	require.NotNil(t, cli.conn)
	assert.Equal(t, "relay://"+second.Addr().String()+"> ", cli.config.prompt)
}

func TestRunServeStopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		ListenAddr:    "127.0.0.1:0",
		SlotCapacity:  4,
		EventCapacity: 16,
		LogLevel:      "error",
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, ok := strings.Cut(addr, ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
