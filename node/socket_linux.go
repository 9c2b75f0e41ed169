//go:build linux
// +build linux

package node

import (
	"golang.org/x/sys/unix"
)

// Socket is the non-blocking byte stream a Conn owns. Read and Write follow read(2) and
// write(2): a would-block condition is reported as unix.EAGAIN, end of stream as (0, nil).
type Socket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Fd() int
}

type fdSocket struct {
	fd int
}

func newFdSocket(fd int) *fdSocket {
	return &fdSocket{fd: fd}
}

func (s *fdSocket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (s *fdSocket) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (s *fdSocket) Close() error {
	return unix.Close(s.fd)
}

func (s *fdSocket) Fd() int {
	return s.fd
}
