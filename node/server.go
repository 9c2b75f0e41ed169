//go:build linux
// +build linux

package node

import (
	"fmt"
	"math"
	"net"
	"runtime"
	"sync/atomic"

	"github.com/fzft/go-frame-relay/container"
	"github.com/fzft/go-frame-relay/frame"
	"github.com/fzft/go-frame-relay/log"
	"github.com/fzft/go-frame-relay/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultSlotCapacity  = 128
	DefaultEventCapacity = 1024
	DefaultMaxPayload    = 64 << 20
)

var (
	// serverToken and wakeToken never collide with a slab index.
	serverToken = Token{Index: math.MaxInt32}
	wakeToken   = Token{Index: math.MaxInt32 - 1}
)

// removal reasons, used as log event kinds and metric labels
const (
	reasonHangup   = "hangup"
	reasonError    = "error"
	reasonWrite    = "write"
	reasonRead     = "read"
	reasonRegister = "register"
	reasonSend     = "send"
)

type Options struct {
	SlotCapacity  int
	EventCapacity int
	// MaxPayload bounds the announced frame length; 0 disables the check.
	MaxPayload uint64
	Logger     *zap.Logger
	Metrics    *metrics.Relay
}

type Option func(*Options)

func WithSlotCapacity(n int) Option {
	return func(o *Options) { o.SlotCapacity = n }
}

func WithEventCapacity(n int) Option {
	return func(o *Options) { o.EventCapacity = n }
}

func WithMaxPayload(n uint64) Option {
	return func(o *Options) { o.MaxPayload = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithMetrics(m *metrics.Relay) Option {
	return func(o *Options) { o.Metrics = m }
}

// Server is the relay reactor. It owns the listening socket, the slot table of live
// connections and the epoll instance, and runs on a single goroutine.
type Server struct {
	lnFd    int
	addr    *net.TCPAddr
	poll    *Poll
	conns   *container.Slab[*Conn]
	dirty   []Token
	opts    Options
	log     *zap.Logger
	metrics *metrics.Relay
	closed  atomic.Bool
}

// NewServer binds addr and prepares the poller. Connections are only accepted once Run is called.
func NewServer(addr string, opts ...Option) (*Server, error) {
	o := Options{
		SlotCapacity:  DefaultSlotCapacity,
		EventCapacity: DefaultEventCapacity,
		MaxPayload:    DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.SlotCapacity <= 0 || o.SlotCapacity >= int(wakeToken.Index) {
		return nil, fmt.Errorf("invalid slot capacity %d", o.SlotCapacity)
	}
	if o.EventCapacity <= 0 {
		return nil, fmt.Errorf("invalid event capacity %d", o.EventCapacity)
	}
	if o.Logger == nil {
		o.Logger = log.Logger
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}

	lnFd, bound, err := listenTCP(addr)
	if err != nil {
		o.Logger.Error("listen error", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}

	poll, err := NewPoll(o.EventCapacity)
	if err != nil {
		CloseFd(lnFd)
		o.Logger.Error("failed to create poller", zap.Error(err))
		return nil, err
	}

	return &Server{
		lnFd:    lnFd,
		addr:    bound,
		poll:    poll,
		conns:   container.NewSlab[*Conn](o.SlotCapacity),
		opts:    o,
		log:     o.Logger,
		metrics: o.Metrics,
	}, nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Run drives the event loop until Shutdown is called or the poller fails. It always
// returns a non-nil error: ErrServerStopped after Shutdown, the poll failure otherwise.
func (s *Server) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// handle cleanup if necessary
	defer s.closeGracefully()

	// Register the listener to epoll for read events
	if err := s.poll.Register(s.lnFd, serverToken, Readable, Edge); err != nil {
		s.log.Error("failed to register server", zap.Error(err))
		return err
	}
	s.log.Info("server run loop starting", zap.Stringer("addr", s.addr))

	for {
		events, err := s.poll.Wait()
		if err != nil {
			s.log.Error("epoll wait error", zap.Error(err))
			return fmt.Errorf("poll: %w", err)
		}

		for _, ev := range events {
			if ev.Token == wakeToken {
				s.log.Info("received stop signal, exiting event loop")
				return ErrServerStopped
			}
			s.ready(ev.Token, ev.Readiness)
		}
	}
}

// Shutdown wakes the event loop and makes Run return. Safe to call from any goroutine.
func (s *Server) Shutdown() error {
	if s.closed.Load() {
		return nil
	}
	return s.poll.Wake()
}

// ready dispatches one readiness event. Order matters: error and hangup first, then
// writable, then readable, and finally the oneshot registration is rearmed.
func (s *Server) ready(tok Token, ev Interest) {
	if tok == serverToken {
		if ev.IsError() {
			s.log.Warn("error event on listener")
		}
		if ev.IsReadable() {
			s.accept()
		}
		s.rearmDirty()
		return
	}

	c, ok := s.conns.Get(tok)
	if !ok {
		s.log.Debug("stale event", zap.Stringer("token", tok), zap.Stringer("event", ev))
		return
	}
	// destinations touched by a broadcast are rearmed even when tok itself is removed
	defer s.rearmDirty()
	s.log.Debug("connection event", zap.Stringer("token", tok), zap.Stringer("event", ev))

	if ev.IsError() {
		s.log.Warn("error event", zap.Stringer("token", tok))
		s.remove(tok, reasonError)
		return
	}
	if ev.IsHangup() {
		s.log.Debug("hup event", zap.Stringer("token", tok))
		s.remove(tok, reasonHangup)
		return
	}

	if ev.IsWritable() {
		if err := c.Writable(); err != nil {
			s.log.Warn("write event failed", zap.Stringer("token", tok), zap.Error(err))
			s.remove(tok, reasonWrite)
			return
		}
	}

	if ev.IsReadable() {
		if err := s.readable(c); err != nil {
			s.log.Warn("read event failed", zap.Stringer("token", tok), zap.Error(err))
			s.remove(tok, reasonRead)
			return
		}
	}

	if !s.conns.Contains(tok) {
		return
	}
	if err := c.Reregister(s.poll); err != nil {
		s.log.Warn("reregister failed", zap.Stringer("token", tok), zap.Error(err))
		s.remove(tok, reasonRegister)
	}
}

// accept drains the listen backlog. The listener is edge-triggered, so stopping before
// EAGAIN would strand pending connections.
func (s *Server) accept() {
	for {
		fd, peer, err := acceptConn(s.lnFd)
		if err != nil {
			if isWouldBlock(err) {
				return
			}
			s.log.Error("failed to accept new socket", zap.Error(err))
			return
		}

		sock := newFdSocket(fd)
		tok, ok := s.conns.Insert(func(tok Token) *Conn {
			return newConn(sock, tok, peer, s.opts.MaxPayload, s.log)
		})
		if !ok {
			s.log.Error("dropping connection", zap.String("peer", peer), zap.Error(ErrSlabExhausted))
			sock.Close()
			s.metrics.ConnRejected()
			continue
		}
		s.metrics.ConnAccepted()

		c, _ := s.conns.Get(tok)
		if err := c.Register(s.poll); err != nil {
			s.remove(tok, reasonRegister)
			continue
		}
		s.log.Debug("new connection", zap.Stringer("token", tok), zap.String("peer", peer))
	}
}

// readable decodes every complete frame available on c and broadcasts each one.
func (s *Server) readable(c *Conn) error {
	for {
		payload, err := c.Readable()
		if err != nil {
			return err
		}
		if payload == nil {
			return nil
		}
		s.metrics.FrameReceived(len(payload))

		if err := s.broadcast(c, frame.NewMessage(payload)); err != nil {
			return err
		}
	}
}

// broadcast hands msg to every live connection, the sender included. A destination that
// fails is removed on its own; only a failure of src itself is returned.
func (s *Server) broadcast(src *Conn, msg *frame.Message) error {
	type failure struct {
		tok Token
		err error
	}
	var (
		failed []failure
		srcErr error
	)

	s.conns.Range(func(tok Token, dst *Conn) bool {
		if err := dst.SendMessage(msg); err != nil {
			if dst == src {
				srcErr = err
			} else {
				failed = append(failed, failure{tok: tok, err: err})
			}
			return true
		}
		s.metrics.FrameEnqueued()
		if dst != src && dst.interest != dst.armed {
			s.dirty = append(s.dirty, tok)
		}
		return true
	})

	for _, f := range failed {
		s.log.Warn("send failed", zap.Stringer("token", f.tok), zap.Error(f.err))
		s.remove(f.tok, reasonSend)
	}
	return srcErr
}

// rearmDirty pushes interest changes made to other connections during a broadcast.
func (s *Server) rearmDirty() {
	for _, tok := range s.dirty {
		c, ok := s.conns.Get(tok)
		if !ok || c.interest == c.armed {
			continue
		}
		if err := c.Reregister(s.poll); err != nil {
			s.log.Warn("reregister failed", zap.Stringer("token", tok), zap.Error(err))
			s.remove(tok, reasonRegister)
		}
	}
	s.dirty = s.dirty[:0]
}

// remove closes the connection at tok and frees its slot.
func (s *Server) remove(tok Token, reason string) {
	c, ok := s.conns.Remove(tok)
	if !ok {
		s.log.Warn("unable to remove connection", zap.Stringer("token", tok))
		return
	}
	if err := s.poll.Deregister(c.Fd()); err != nil {
		s.log.Debug("failed to deregister", zap.Stringer("token", tok), zap.Error(err))
	}
	if err := c.Close(); err != nil {
		s.log.Debug("failed to close connection", zap.Stringer("token", tok), zap.Error(err))
	}
	s.metrics.ConnRemoved(reason)
	s.log.Debug("reset connection", zap.Stringer("token", tok), zap.String("peer", c.Peer()), zap.String("event", reason))
}

// closeGracefully order: listener, connections, poller.
func (s *Server) closeGracefully() {
	s.closed.Store(true)
	var errs error

	if err := s.poll.Deregister(s.lnFd); err != nil {
		s.log.Debug("failed to delete listener from epoll", zap.Error(err))
	}
	errs = multierr.Append(errs, CloseFd(s.lnFd))

	var live []Token
	s.conns.Range(func(tok Token, _ *Conn) bool {
		live = append(live, tok)
		return true
	})
	for _, tok := range live {
		c, _ := s.conns.Remove(tok)
		errs = multierr.Append(errs, c.Close())
		s.metrics.ConnRemoved("shutdown")
	}

	errs = multierr.Append(errs, s.poll.Close())
	if errs != nil {
		s.log.Warn("errors while closing", zap.Errors("errors", multierr.Errors(errs)))
	}
	s.log.Info("server closed")
}
