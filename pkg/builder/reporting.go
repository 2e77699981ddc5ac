package builder

// WithSentry enables error reporting to the given Sentry DSN.
func (b *Builder) WithSentry(dsn string) *Builder {
	b.cfg.Sentry.DSN = dsn
	return b
}
