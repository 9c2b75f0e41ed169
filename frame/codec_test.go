package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, size := range []int{1, 5, 255, 256, 64 * 1024, 1 << 20} {
		payload := bytes.Repeat([]byte{0xab}, size)
		payload[0] = 0x01

		got, rest, err := Decode(Encode(payload))
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, payload, got)
		assert.Empty(t, rest)
	}
}

func TestDecodeZeroLengthYieldsNoFrame(t *testing.T) {
	encoded := Encode(nil)
	assert.Len(t, encoded, LengthSize)

	got, rest, err := Decode(encoded)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, rest)
}

func TestEncodeIsBigEndian(t *testing.T) {
	encoded := Encode([]byte("hello"))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}, encoded)
}

func TestDecodeLength(t *testing.T) {
	n, err := DecodeLength([]byte{0, 0, 0, 0, 0, 0, 0, 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)

	_, err = DecodeLength([]byte{0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeIncomplete(t *testing.T) {
	encoded := Encode([]byte("hello"))

	_, _, err := Decode(encoded[:4])
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, rest, err := Decode(encoded[:10])
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, encoded[:10], rest)
}

func TestDecodeConsecutiveFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, Encode([]byte("one"))...)
	stream = append(stream, Encode(nil)...)
	stream = append(stream, Encode([]byte("two"))...)

	first, rest, err := Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), first)

	empty, rest, err := Decode(rest)
	require.NoError(t, err)
	assert.Nil(t, empty)

	second, rest, err := Decode(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), second)
	assert.Empty(t, rest)
}

func TestWriteReadFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))
	require.NoError(t, WriteFrame(&buf, []byte("world")))

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	// the empty frame in between is skipped
	got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	_, err = ReadFrame(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameLimitAndTruncation(t *testing.T) {
	encoded := Encode(bytes.Repeat([]byte("x"), 32))

	_, err := ReadFrame(bytes.NewReader(encoded), 16)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = ReadFrame(bytes.NewReader(encoded[:20]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMessageSharesBytes(t *testing.T) {
	payload := []byte("shared")
	msg := NewMessage(payload)
	assert.Equal(t, 6, msg.Len())
	assert.Same(t, &payload[0], &msg.Bytes()[0])
}
