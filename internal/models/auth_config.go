package models

// AuthConfig controls how request identity is established. When JWTSecret is
// set, bearer tokens are verified and the user ID is read from the sub (or
// configured) claim. Otherwise identity falls back to the user header, and
// AllowAnonymous decides whether requests without one are accepted.
type AuthConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	JWTSecret      string   `json:"jwt_secret,omitzero" yaml:"jwt_secret"`
	UserIDClaim    string   `json:"user_id_claim,omitzero" yaml:"user_id_claim"`
	UserHeader     string   `json:"user_header,omitzero" yaml:"user_header"`
	AllowAnonymous bool     `json:"allow_anonymous" yaml:"allow_anonymous"`
	SkipPaths      []string `json:"skip_paths,omitzero" yaml:"skip_paths"`
}
