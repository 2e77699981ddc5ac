package models

// SentryConfig controls error reporting. An empty DSN disables Sentry
// delivery; failures are still logged locally.
type SentryConfig struct {
	DSN              string  `yaml:"dsn,omitempty" json:"dsn,omitzero"`
	Environment      string  `yaml:"environment,omitempty" json:"environment,omitzero"`
	TracesSampleRate float64 `yaml:"traces_sample_rate,omitempty" json:"traces_sample_rate,omitzero"`
}
