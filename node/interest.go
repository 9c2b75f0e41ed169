//go:build linux
// +build linux

package node

import (
	"strings"

	"github.com/fzft/go-frame-relay/container"
)

// Token identifies a connection slot. The generation half makes tokens of removed
// connections distinguishable from the connection that later reuses the slot.
type Token = container.Key

// Interest is a set of readiness kinds. It doubles as the readiness reported by the poller.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
	Hangup
	Errored
)

func (i Interest) IsReadable() bool { return i&Readable != 0 }
func (i Interest) IsWritable() bool { return i&Writable != 0 }
func (i Interest) IsHangup() bool { return i&Hangup != 0 }
func (i Interest) IsError() bool { return i&Errored != 0 }

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i.IsReadable() {
		parts = append(parts, "readable")
	}
	if i.IsWritable() {
		parts = append(parts, "writable")
	}
	if i.IsHangup() {
		parts = append(parts, "hup")
	}
	if i.IsError() {
		parts = append(parts, "error")
	}
	return strings.Join(parts, "|")
}
