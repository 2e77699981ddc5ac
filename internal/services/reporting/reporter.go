// Package reporting forwards stream and run failures to an external error
// sink. Reporting is always best-effort: a broken sink degrades to local
// warnings and never interferes with frame delivery.
package reporting

import (
	"fmt"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/getsentry/sentry-go"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Reporter captures errors to Sentry when a DSN is configured and always
// writes a local warning, so failures remain visible without any external
// dependency.
type Reporter struct {
	enabled bool
}

// New initializes the reporter. An empty DSN disables Sentry delivery but
// keeps local logging active.
func New(cfg models.SentryConfig, environment string) (*Reporter, error) {
	if cfg.DSN == "" {
		fiberlog.Debug("Sentry reporting disabled: no DSN configured")
		return &Reporter{enabled: false}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = environment
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	fiberlog.Infof("Sentry reporting enabled (environment: %s)", env)
	return &Reporter{enabled: true}, nil
}

// Report forwards one failure to the sink. It never panics and never blocks
// on delivery; Sentry transport is asynchronous and flushed on shutdown.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}

	fiberlog.Warnf("Stream failure reported: %v", err)

	if r.enabled {
		sentry.CaptureException(err)
	}
}

// Flush drains buffered events before shutdown, waiting at most timeout.
func (r *Reporter) Flush(timeout time.Duration) {
	if r.enabled {
		sentry.Flush(timeout)
	}
}
