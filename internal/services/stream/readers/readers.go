// Package readers adapts provider SDK streams to the chunk contract consumed
// by the SSE layer. Each reader pulls provider-specific events, translates
// them into normalized run events, and accumulates the token totals the run's
// usage task resolves with.
package readers

// Stream is the subset of the provider SDK stream surface the readers
// consume. The OpenAI and Anthropic SSE stream types both satisfy it.
type Stream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// DefaultRole is assigned to message deltas whose provider chunk omits a
// role. All supported providers generate as the assistant.
const DefaultRole = "assistant"
