package sse

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamClosed is returned by Send once the consumer has closed the stream.
var ErrStreamClosed = errors.New("sse: chunk stream closed by consumer")

// ChannelStream bridges a producing goroutine and the stream adapter. The
// producer calls Send for each chunk and CloseSend exactly once when done;
// the adapter consumes through the ChunkStream side. The terminal error set
// by CloseSend becomes Err() after the consumer drains the channel.
type ChannelStream struct {
	ch        chan any
	done      chan struct{}
	closeOnce sync.Once
	sendOnce  sync.Once
	current   any
	err       error
}

// NewChannelStream creates a channel stream with the given send buffer.
func NewChannelStream(buffer int) *ChannelStream {
	return &ChannelStream{
		ch:   make(chan any, buffer),
		done: make(chan struct{}),
	}
}

// Send delivers one chunk to the consumer. It blocks until the chunk is
// accepted, the consumer closes the stream, or ctx ends.
func (s *ChannelStream) Send(ctx context.Context, chunk any) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- chunk:
		return nil
	}
}

// CloseSend ends the producer side. err is the stream's terminal error, nil
// for clean exhaustion. The first call wins; later calls are no-ops. The
// error write is published to the consumer by the channel close.
func (s *ChannelStream) CloseSend(err error) {
	s.sendOnce.Do(func() {
		s.err = err
		close(s.ch)
	})
}

// Next advances to the next chunk, blocking until one arrives or the
// producer closes its side.
func (s *ChannelStream) Next() bool {
	chunk, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = chunk
	return true
}

// Current returns the chunk Next advanced to.
func (s *ChannelStream) Current() any {
	return s.current
}

// Err returns the terminal error set by CloseSend. Only meaningful after
// Next has returned false.
func (s *ChannelStream) Err() error {
	return s.err
}

// Close releases the consumer side. Producers blocked in Send unblock with
// ErrStreamClosed. Safe to call more than once.
func (s *ChannelStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// Done closes when the consumer abandons the stream, letting producers stop
// early instead of generating chunks nobody will read.
func (s *ChannelStream) Done() <-chan struct{} {
	return s.done
}
