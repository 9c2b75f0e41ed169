//go:build linux
// +build linux

package node

import (
	"os"

	"golang.org/x/sys/unix"
)

// https://copyconstruct.medium.com/the-method-to-epolls-madness-d9d2d6378642

// Mode selects the epoll trigger options of a registration.
type Mode uint8

const (
	// Edge reports readiness on transitions only; the handler has to drain the socket.
	Edge Mode = 1 << iota
	// Oneshot disarms the registration after one delivery until it is rearmed.
	Oneshot

	Level Mode = 0
)

// Event is one readiness notification, already mapped back to its token.
type Event struct {
	Token     Token
	Readiness Interest
}

// Poll is a wrapper around epoll. The token of every registration is packed into the event
// data so a notification can be matched against the slot generation it was armed for.
type Poll struct {
	epollFd int
	efd     int // eventfd used to wake the loop from another goroutine
	events  []unix.EpollEvent
	ready   []Event
}

func NewPoll(size int) (*Poll, error) {
	// Create a new epoll instance
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	p := &Poll{
		epollFd: epfd,
		efd:     efd,
		events:  make([]unix.EpollEvent, size),
		ready:   make([]Event, 0, size),
	}

	// Register the eventfd to epoll for read events
	if err := p.Register(efd, wakeToken, Readable, Level); err != nil {
		unix.Close(efd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func epollMask(in Interest, mode Mode) uint32 {
	var ev uint32
	if in.IsReadable() {
		ev |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if in.IsWritable() {
		ev |= unix.EPOLLOUT
	}
	if in.IsHangup() {
		ev |= unix.EPOLLRDHUP
	}
	if mode&Edge != 0 {
		ev |= unix.EPOLLET
	}
	if mode&Oneshot != 0 {
		ev |= unix.EPOLLONESHOT
	}
	return ev
}

func readinessOf(ev uint32) Interest {
	var r Interest
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		r |= Readable
	}
	if ev&unix.EPOLLOUT != 0 {
		r |= Writable
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		r |= Hangup
	}
	if ev&unix.EPOLLERR != 0 {
		r |= Errored
	}
	return r
}

func epollEvent(tok Token, in Interest, mode Mode) *unix.EpollEvent {
	return &unix.EpollEvent{
		Events: epollMask(in, mode),
		Fd:     tok.Index,
		Pad:    int32(tok.Gen),
	}
}

// Register adds fd to epoll.
func (p *Poll) Register(fd int, tok Token, in Interest, mode Mode) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_ADD, fd, epollEvent(tok, in, mode)))
}

// Reregister replaces the interest of fd, rearming a oneshot registration.
func (p *Poll) Reregister(fd int, tok Token, in Interest, mode Mode) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_MOD, fd, epollEvent(tok, in, mode)))
}

// Deregister removes fd from epoll.
func (p *Poll) Deregister(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, fd, nil))
}

// Wait blocks until at least one event is ready. The returned slice is reused by the next call.
func (p *Poll) Wait() ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.epollFd, p.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, os.NewSyscallError("epoll_wait", err)
		}

		p.ready = p.ready[:0]
		for i := 0; i < n; i++ {
			ev := &p.events[i]
			p.ready = append(p.ready, Event{
				Token:     Token{Index: ev.Fd, Gen: uint32(ev.Pad)},
				Readiness: readinessOf(ev.Events),
			})
		}
		return p.ready, nil
	}
}

// Wake makes a blocked Wait return an event for wakeToken. Safe to call from any goroutine.
func (p *Poll) Wake() error {
	buf := [8]byte{1}
	_, err := unix.Write(p.efd, buf[:])
	if err == unix.EAGAIN {
		// counter is saturated, a wakeup is already pending
		return nil
	}
	return os.NewSyscallError("eventfd write", err)
}

// Close order: eventfd, epoll.
func (p *Poll) Close() error {
	_ = p.Deregister(p.efd)
	err := CloseFd(p.efd)
	if cerr := CloseFd(p.epollFd); err == nil {
		err = cerr
	}
	return err
}
