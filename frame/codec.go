package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// LengthSize is the size of the big-endian length prefix in front of every frame.
const LengthSize = 8

var ErrInvalidLength = errors.New("invalid message length")

// DecodeLength parses a length prefix. buf must hold exactly LengthSize bytes.
func DecodeLength(buf []byte) (uint64, error) {
	if len(buf) != LengthSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(buf))
	}
	return binary.BigEndian.Uint64(buf), nil
}

// EncodeLength writes the prefix for a payload of n bytes into buf.
func EncodeLength(buf []byte, n int) {
	binary.BigEndian.PutUint64(buf[:LengthSize], uint64(n))
}

// AppendLength appends the prefix for a payload of n bytes to dst.
func AppendLength(dst []byte, n int) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(n))
}

// Encode returns the full wire representation of payload.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, LengthSize+len(payload))
	out = AppendLength(out, len(payload))
	return append(out, payload...)
}

// Decode parses one frame from the front of data and returns the payload and the
// remaining bytes. A zero-length frame yields a nil payload.
func Decode(data []byte) (payload []byte, rest []byte, err error) {
	if len(data) < LengthSize {
		return nil, data, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(data))
	}
	n, _ := DecodeLength(data[:LengthSize])
	body := data[LengthSize:]
	if uint64(len(body)) < n {
		return nil, data, io.ErrUnexpectedEOF
	}
	if n == 0 {
		return nil, body, nil
	}
	return body[:n], body[n:], nil
}

// WriteFrame writes one frame to a blocking writer.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [LengthSize]byte
	EncodeLength(hdr[:], len(payload))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads the next non-empty frame from a blocking reader. Zero-length frames
// carry no message and are skipped. maxLen bounds the accepted payload size, 0 means no limit.
func ReadFrame(r io.Reader, maxLen uint64) ([]byte, error) {
	var hdr [LengthSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		n, _ := DecodeLength(hdr[:])
		if n == 0 {
			continue
		}
		if maxLen > 0 && n > maxLen {
			return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrInvalidLength, n, maxLen)
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return payload, nil
	}
}
