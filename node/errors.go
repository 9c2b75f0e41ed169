//go:build linux
// +build linux

package node

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-connection failures. Every kind is fatal to the connection that
// raised it and to nothing else.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// KindProtocol is a short read or write that was not caused by a would-block condition.
	KindProtocol
	// KindIO is any other socket failure.
	KindIO
	// KindOther is a broken connection invariant, e.g. a writable event with nothing queued.
	KindOther
	// KindRegister is a poller rejecting a (re)registration.
	KindRegister
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	case KindOther:
		return "other"
	case KindRegister:
		return "register"
	default:
		return "unknown"
	}
}

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrQueueEmpty        = errors.New("could not pop send queue")
	ErrSlabExhausted     = errors.New("no free connection slot")
	ErrServerStopped     = errors.New("server stopped")
)

// ConnError is returned by Conn operations. Op names the step that failed.
type ConnError struct {
	Kind  ErrorKind
	Token Token
	Op    string
	Err   error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s (token=%s, kind=%s): %v", e.Op, e.Token, e.Kind, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a ConnError anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

func protocolError(tok Token, op, msg string) error {
	return &ConnError{Kind: KindProtocol, Token: tok, Op: op, Err: fmt.Errorf("%w: %s", ErrProtocolViolation, msg)}
}

func ioError(tok Token, op string, err error) error {
	return &ConnError{Kind: KindIO, Token: tok, Op: op, Err: err}
}
