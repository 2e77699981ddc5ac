package builder

// DisableDoneMarker turns off the terminal [DONE] frame server-wide.
// Individual requests can still opt out via stream_options.
func (b *Builder) DisableDoneMarker() *Builder {
	b.cfg.Stream.DisableDoneMarker = true
	return b
}

// WithChunkDelay inserts an artificial pause before each chunk frame,
// smoothing bursty provider streams for UI consumers.
func (b *Builder) WithChunkDelay(ms int) *Builder {
	b.cfg.Stream.ChunkDelayMs = ms
	return b
}
