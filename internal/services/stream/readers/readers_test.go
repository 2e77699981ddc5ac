package readers

import (
	"github.com/signalwork-ai/agent-relay/internal/services/stream/contracts"
)

// Every reader must satisfy the chunk stream contract the SSE layer consumes.
var (
	_ contracts.ChunkStream = (*OpenAIReader)(nil)
	_ contracts.ChunkStream = (*AnthropicReader)(nil)
	_ contracts.ChunkStream = (*GeminiReader)(nil)
)

// fakeStream yields canned SDK values, then an optional terminal error.
type fakeStream[T any] struct {
	chunks []T
	err    error
	idx    int
	closed bool
}

func (s *fakeStream[T]) Next() bool {
	if s.idx >= len(s.chunks) {
		return false
	}
	s.idx++
	return true
}

func (s *fakeStream[T]) Current() T {
	return s.chunks[s.idx-1]
}

func (s *fakeStream[T]) Err() error {
	if s.idx >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *fakeStream[T]) Close() error {
	s.closed = true
	return nil
}

func drainReader(r contracts.ChunkStream) []any {
	var events []any
	for r.Next() {
		events = append(events, r.Current())
	}
	return events
}
