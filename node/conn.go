//go:build linux
// +build linux

package node

import (
	"github.com/fzft/go-frame-relay/container"
	"github.com/fzft/go-frame-relay/frame"
	"go.uber.org/zap"
)

// readChunk caps how much payload buffer is reserved ahead of the bytes actually received,
// so a peer announcing a huge length cannot make us allocate it up front.
const readChunk = 64 * 1024

type ReadStateKind uint8

const (
	AwaitingLength ReadStateKind = iota
	AwaitingPayload
)

func (k ReadStateKind) String() string {
	if k == AwaitingPayload {
		return "awaiting-payload"
	}
	return "awaiting-length"
}

// ReadState is the read-side continuation. Expected is only meaningful in AwaitingPayload.
// Bytes already taken off the socket stay here until the frame they belong to completes.
type ReadState struct {
	Kind     ReadStateKind
	Expected uint64

	hdr     [frame.LengthSize]byte
	hdrLen  int
	payload []byte
}

// Received reports how many bytes of the current prefix or payload have been consumed.
func (s *ReadState) Received() int {
	if s.Kind == AwaitingPayload {
		return len(s.payload)
	}
	return s.hdrLen
}

type WriteState uint8

const (
	Idle WriteState = iota
	// MidPayload means the prefix of the head frame is already on the wire.
	MidPayload
)

func (s WriteState) String() string {
	if s == MidPayload {
		return "mid-payload"
	}
	return "idle"
}

// outFrame is a queued frame. off > 0 marks the remainder of a partially written frame;
// msg is shared with every other destination of the same broadcast.
type outFrame struct {
	msg *frame.Message
	off int
}

func (f outFrame) pending() []byte {
	return f.msg.Bytes()[f.off:]
}

// Conn is the per-socket protocol state machine. It is owned by the reactor goroutine and
// is not safe for concurrent use.
type Conn struct {
	socket     Socket
	token      Token
	peer       string
	interest   Interest
	armed      Interest
	read       ReadState
	write      WriteState
	queue      *container.List[outFrame]
	maxPayload uint64
	log        *zap.Logger
}

func newConn(socket Socket, token Token, peer string, maxPayload uint64, logger *zap.Logger) *Conn {
	return &Conn{
		socket:     socket,
		token:      token,
		peer:       peer,
		interest:   Hangup,
		queue:      container.NewList[outFrame](),
		maxPayload: maxPayload,
		log:        logger.With(zap.Stringer("token", token)),
	}
}

func (c *Conn) Token() Token { return c.token }
func (c *Conn) Peer() string { return c.peer }
func (c *Conn) Fd() int { return c.socket.Fd() }
func (c *Conn) Interest() Interest { return c.interest }
func (c *Conn) ReadState() ReadState { return c.read }
func (c *Conn) WriteState() WriteState { return c.write }
func (c *Conn) Queued() int { return c.queue.Len() }

// Readable pulls bytes off the socket until one frame completes or the socket would block.
// It returns the payload of a completed frame, or nil when no message is available yet.
func (c *Conn) Readable() ([]byte, error) {
	if c.read.Kind == AwaitingLength {
		n, ok, err := c.readMessageLength()
		if err != nil || !ok {
			return nil, err
		}
		if n == 0 {
			c.log.Debug("message is zero bytes")
			return nil, nil
		}
		if c.maxPayload > 0 && n > c.maxPayload {
			c.log.Warn("message length over limit", zap.Uint64("len", n), zap.Uint64("max", c.maxPayload))
			return nil, protocolError(c.token, "read", "message length over limit")
		}
		c.log.Debug("expected message length", zap.Uint64("len", n))
		c.read = ReadState{
			Kind:     AwaitingPayload,
			Expected: n,
			payload:  make([]byte, 0, minUint64(n, readChunk)),
		}
	}
	return c.readPayload()
}

// readMessageLength returns the decoded prefix once all of its bytes are in. ok is false
// while the prefix is still incomplete and the socket would block.
func (c *Conn) readMessageLength() (n uint64, ok bool, err error) {
	for c.read.hdrLen < frame.LengthSize {
		got, rerr := c.socket.Read(c.read.hdr[c.read.hdrLen:])
		if rerr != nil {
			if isWouldBlock(rerr) {
				return 0, false, nil
			}
			c.log.Error("failed to read message length", zap.Error(rerr))
			return 0, false, ioError(c.token, "read length", rerr)
		}
		if got == 0 {
			c.log.Warn("found short message length", zap.Int("bytes", c.read.hdrLen))
			return 0, false, protocolError(c.token, "read length", "invalid message length")
		}
		c.read.hdrLen += got
	}

	n, err = frame.DecodeLength(c.read.hdr[:])
	c.read.hdrLen = 0
	if err != nil {
		return 0, false, protocolError(c.token, "read length", err.Error())
	}
	return n, true, nil
}

func (c *Conn) readPayload() ([]byte, error) {
	st := &c.read
	for uint64(len(st.payload)) < st.Expected {
		want := minUint64(st.Expected-uint64(len(st.payload)), readChunk)
		start := len(st.payload)
		if cap(st.payload)-start < int(want) {
			grown := make([]byte, start, start+int(want))
			copy(grown, st.payload)
			st.payload = grown
		}

		got, err := c.socket.Read(st.payload[start : start+int(want)])
		if err != nil {
			if isWouldBlock(err) {
				c.log.Debug("read encountered would-block",
					zap.Int("have", start), zap.Uint64("want", st.Expected))
				return nil, nil
			}
			c.log.Error("failed to read payload", zap.Error(err))
			return nil, ioError(c.token, "read payload", err)
		}
		if got == 0 {
			return nil, protocolError(c.token, "read payload", "did not read enough bytes")
		}
		st.payload = st.payload[:start+got]
	}

	msg := st.payload
	c.read = ReadState{}
	return msg, nil
}

// Writable sends from the head of the outbound queue. Writable interest must only be armed
// while the queue is non-empty, so an empty queue here is a broken invariant.
func (c *Conn) Writable() error {
	f, ok := c.queue.PopHead()
	if !ok {
		return &ConnError{Kind: KindOther, Token: c.token, Op: "write", Err: ErrQueueEmpty}
	}
	if err := c.writeMessage(f); err != nil {
		return err
	}
	if c.queue.Len() == 0 {
		c.interest &^= Writable
	}
	return nil
}

// SendMessage queues msg for delivery. With nothing queued ahead of it the write is
// attempted immediately, saving a poll round-trip.
func (c *Conn) SendMessage(msg *frame.Message) error {
	if c.queue.Len() == 0 {
		if err := c.writeMessage(outFrame{msg: msg}); err != nil {
			return err
		}
	} else {
		c.queue.AddNodeTail(outFrame{msg: msg})
	}
	if c.queue.Len() > 0 {
		c.interest |= Writable
	}
	return nil
}

// writeMessageLength reports whether the prefix of f is on the wire.
func (c *Conn) writeMessageLength(f outFrame) (bool, error) {
	if c.write == MidPayload {
		return true, nil
	}

	var hdr [frame.LengthSize]byte
	frame.EncodeLength(hdr[:], f.msg.Len())
	n, err := c.socket.Write(hdr[:])
	if err != nil {
		if isWouldBlock(err) {
			c.log.Debug("length write encountered would-block")
			return false, nil
		}
		c.log.Error("failed to send message length", zap.Error(err))
		return false, ioError(c.token, "write length", err)
	}
	if n < frame.LengthSize {
		c.log.Error("short message length write", zap.Int("bytes", n))
		return false, protocolError(c.token, "write length", "message length failed")
	}
	return true, nil
}

func (c *Conn) writeMessage(f outFrame) error {
	sent, err := c.writeMessageLength(f)
	if err != nil {
		return err
	}
	if !sent {
		c.queue.AddNodeHead(f)
		return nil
	}

	data := f.pending()
	written := 0
	for written < len(data) {
		n, err := c.socket.Write(data[written:])
		written += n
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			c.log.Error("failed to send payload", zap.Error(err))
			return ioError(c.token, "write payload", err)
		}
		if n == 0 {
			break
		}
	}

	if written < len(data) {
		c.log.Debug("partial payload write", zap.Int("wrote", written), zap.Int("left", len(data)-written))
		c.queue.AddNodeHead(outFrame{msg: f.msg, off: f.off + written})
		c.write = MidPayload
		return nil
	}
	c.write = Idle
	return nil
}

// Register arms the connection with the poller for the first time.
func (c *Conn) Register(p *Poll) error {
	c.interest |= Readable
	if err := p.Register(c.socket.Fd(), c.token, c.interest, Edge|Oneshot); err != nil {
		c.log.Error("failed to register", zap.Error(err))
		return &ConnError{Kind: KindRegister, Token: c.token, Op: "register", Err: err}
	}
	c.armed = c.interest
	return nil
}

// Reregister rearms the oneshot registration with the current interest.
func (c *Conn) Reregister(p *Poll) error {
	if err := p.Reregister(c.socket.Fd(), c.token, c.interest, Edge|Oneshot); err != nil {
		c.log.Error("failed to reregister", zap.Error(err))
		return &ConnError{Kind: KindRegister, Token: c.token, Op: "reregister", Err: err}
	}
	c.armed = c.interest
	return nil
}

// Close drops everything still queued and closes the socket.
func (c *Conn) Close() error {
	c.queue.Empty()
	c.read = ReadState{}
	c.write = Idle
	return c.socket.Close()
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
