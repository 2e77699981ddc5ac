package runs

import (
	"strings"
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func acquireTestCtx(t *testing.T) (*fiber.App, *fiber.Ctx) {
	t.Helper()
	app := fiber.New()
	ctx := app.AcquireCtx(&fasthttp.RequestCtx{})
	t.Cleanup(func() { app.ReleaseCtx(ctx) })
	return app, ctx
}

func TestGetRequestIDFromHeader(t *testing.T) {
	svc := NewRequestService()
	_, ctx := acquireTestCtx(t)
	ctx.Request().Header.Set("X-Request-ID", "  client-supplied-id  ")

	id := svc.GetRequestID(ctx)
	assert.Equal(t, "client-supplied-id", id)

	// Cached in locals; header changes no longer matter.
	ctx.Request().Header.Set("X-Request-ID", "something-else")
	assert.Equal(t, id, svc.GetRequestID(ctx))
}

func TestGetRequestIDGenerated(t *testing.T) {
	svc := NewRequestService()
	_, ctx := acquireTestCtx(t)

	id := svc.GetRequestID(ctx)
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.Len(t, id, len("req_")+16)
	assert.Equal(t, id, svc.GetRequestID(ctx))
}

func TestGetRequestIDCapsLength(t *testing.T) {
	svc := NewRequestService()
	_, ctx := acquireTestCtx(t)
	ctx.Request().Header.Set("X-Request-ID", strings.Repeat("x", 300))

	assert.Len(t, svc.GetRequestID(ctx), 256)
}

func TestGenerateRunID(t *testing.T) {
	svc := NewRequestService()
	first := svc.GenerateRunID()
	assert.True(t, strings.HasPrefix(first, "run_"))
	assert.Len(t, first, len("run_")+24)
	assert.NotEqual(t, first, svc.GenerateRunID())
}

func TestGetUserID(t *testing.T) {
	svc := NewRequestService()
	_, ctx := acquireTestCtx(t)
	assert.Empty(t, svc.GetUserID(ctx))

	ctx.Locals(userIDLocalKey, "user_42")
	assert.Equal(t, "user_42", svc.GetUserID(ctx))
}

func TestParseRunRequest(t *testing.T) {
	svc := NewRequestService()

	t.Run("valid body", func(t *testing.T) {
		_, ctx := acquireTestCtx(t)
		ctx.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
		ctx.Request().SetBody([]byte(`{
			"provider": " OpenAI ",
			"model": "gpt-4o-mini",
			"messages": [{"role": "user", "content": "hi"}],
			"stream": true
		}`))

		req, err := svc.ParseRunRequest(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.ProviderOpenAI, req.Provider)
		assert.True(t, req.Stream)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, ctx := acquireTestCtx(t)
		ctx.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
		ctx.Request().SetBody([]byte(`{"provider":`))

		_, err := svc.ParseRunRequest(ctx)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
	})

	t.Run("invalid request", func(t *testing.T) {
		_, ctx := acquireTestCtx(t)
		ctx.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
		ctx.Request().SetBody([]byte(`{"provider": "openai", "messages": []}`))

		_, err := svc.ParseRunRequest(ctx)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
	})
}
