package models

// StreamConfig holds server-wide SSE delivery defaults.
type StreamConfig struct {
	// DisableDoneMarker turns off the terminal [DONE] frame for every run.
	// Individual requests may still disable it via stream_options.
	DisableDoneMarker bool `yaml:"disable_done_marker" json:"disable_done_marker,omitzero"`

	// ChunkDelayMs inserts an artificial pause before each chunk frame.
	// Useful to smooth bursty provider streams for UI consumers; 0 disables.
	ChunkDelayMs int `yaml:"chunk_delay_ms" json:"chunk_delay_ms,omitzero"`
}
