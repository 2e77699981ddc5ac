package models

// RedisConfig holds the connection settings for the shared Redis instance
// backing distributed rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"password,omitzero"`
	DB       int    `yaml:"db,omitempty" json:"db,omitzero"`
}

// RateLimitConfig controls per-user run throttling. When Redis is configured
// the window is shared across relay instances; otherwise each instance
// enforces it locally in memory.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
}
