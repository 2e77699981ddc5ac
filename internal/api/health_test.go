package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckWithoutOptionalDeps(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(nil, nil).HealthCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
			Redis    string `json:"redis"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "healthy", payload.Status)
	assert.Equal(t, "disabled", payload.Checks.Database)
	assert.Equal(t, "disabled", payload.Checks.Redis)
}
