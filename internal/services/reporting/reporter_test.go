package reporting

import (
	"errors"
	"testing"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDSNDisablesSentry(t *testing.T) {
	reporter, err := New(models.SentryConfig{}, "test")
	require.NoError(t, err)
	assert.False(t, reporter.enabled)
}

func TestReportIsSafeWhenDisabled(t *testing.T) {
	reporter, err := New(models.SentryConfig{}, "test")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		reporter.Report(errors.New("stream blew up"))
		reporter.Report(nil)
		reporter.Flush(10 * time.Millisecond)
	})
}
