package gocork

import "sync/atomic"

// SessionID is an opaque identifier for a connected endpoint.
type SessionID string

// Message interface, implemented by all application messages that are
// batched through a Compressor.
type Message interface {
	// ID return the message type identifier, written as the first two
	// bytes of the record.
	ID() uint16

	// DebugID return a per-message identifier used for tracing.
	DebugID() uint32

	// Encode appends the message payload to out and returns the
	// extended slice.
	Encode(out []byte) []byte

	// String representation of this message, used for logging.
	String() string
}

// ModCounter is optionally implemented by messages whose state can be
// mutated by other goroutines. The count must change on every mutation,
// SerializeMessage compares it before and after Encode.
type ModCounter interface {
	ModCount() uint64
}

// Modcount can be embedded in a message to implement ModCounter.
type Modcount struct {
	n uint64
}

// Touch records a mutation.
func (m *Modcount) Touch() {
	atomic.AddUint64(&m.n, 1)
}

// ModCount implements ModCounter{} interface.
func (m *Modcount) ModCount() uint64 {
	return atomic.LoadUint64(&m.n)
}
