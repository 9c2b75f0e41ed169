package frame

// Message is a decoded payload shared read-only between every destination queue of a
// broadcast. It must never be mutated after NewMessage returns.
type Message struct {
	data []byte
}

func NewMessage(data []byte) *Message {
	return &Message{data: data}
}

// Bytes returns the payload. Callers must not modify the returned slice.
func (m *Message) Bytes() []byte {
	return m.data
}

func (m *Message) Len() int {
	return len(m.data)
}
