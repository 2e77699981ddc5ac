package builder

// WithJWTAuth requires a bearer JWT on run requests, verified with the given
// HS256 secret. The user ID is read from the sub claim unless overridden via
// config.
func (b *Builder) WithJWTAuth(secret string) *Builder {
	b.cfg.Auth.Enabled = true
	b.cfg.Auth.JWTSecret = secret
	return b
}

// WithAnonymousAccess accepts requests that carry no verifiable identity.
// Auth stays enabled so header-based identity is still picked up when
// present.
func (b *Builder) WithAnonymousAccess() *Builder {
	b.cfg.Auth.Enabled = true
	b.cfg.Auth.AllowAnonymous = true
	return b
}
