package contracts

import (
	"context"
)

// ChunkStream is a pull-based, single-pass source of run chunks. The usual
// loop is: for Next() { use Current() }, then consult Err(). Close releases
// the underlying source and must be safe to call at any point, including
// before exhaustion.
type ChunkStream interface {
	// Next advances to the next chunk. It returns false when the stream is
	// exhausted or has failed; Err distinguishes the two.
	Next() bool
	// Current returns the chunk Next advanced to. Only valid after a true
	// Next.
	Current() any
	// Err returns the terminal error, or nil after a clean exhaustion.
	Err() error
	// Close releases the chunk source. Safe to call more than once.
	Close() error
}

// FrameWriter delivers fully framed SSE events to the client. Implementations
// must not alter frames; framing is owned by the stream layer above.
type FrameWriter interface {
	WriteFrame(frame string) error
	Flush() error
	Close() error
}

// UsageFuture is a handle to a usage computation running concurrently with
// the chunk stream. Await blocks until the result is ready or ctx is done.
type UsageFuture interface {
	Await(ctx context.Context) (any, error)
}

// ErrorReporter forwards stream failures to an external error sink. Report is
// best-effort: implementations must never panic and must not block delivery
// of subsequent frames.
type ErrorReporter interface {
	Report(err error)
}

// ConnectionState tracks client connection status
type ConnectionState interface {
	IsConnected() bool
	Done() <-chan struct{}
}

// StreamRecord is implemented by structured records that declare their own
// canonical field mapping for SSE serialization.
type StreamRecord interface {
	StreamFields() map[string]any
}

// EnumValuer is implemented by enum-like chunk values; the underlying scalar
// is stringified onto the wire.
type EnumValuer interface {
	EnumValue() any
}
