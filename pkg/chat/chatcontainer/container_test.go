package chatcontainer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/metricsx"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNew_HeaderModeWithoutStores(t *testing.T) {
	c, err := New(Deps{Cfg: testConfig(t), Metrics: metricsx.New()})
	require.NoError(t, err)

	assert.NotNil(t, c.Service)
	assert.NotNil(t, c.Jobs)
	assert.Nil(t, c.TokenService)
	assert.False(t, c.IdentityMiddleware.TokensRequired())
	assert.Equal(t, "gpt4", c.Service.DefaultVariant())
}

func TestNew_RejectsUnknownDefaultVariant(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.DefaultVariant = "llama9"

	_, err := New(Deps{Cfg: cfg})
	require.Error(t, err)
}

func TestNew_TokenMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "secret"

	c, err := New(Deps{Cfg: cfg})
	require.NoError(t, err)
	assert.NotNil(t, c.TokenService)
	assert.True(t, c.IdentityMiddleware.TokensRequired())
}

func TestRoutes_MissingKeyFallsBack(t *testing.T) {
	c, err := New(Deps{Cfg: testConfig(t)})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler(false)})
	c.Handlers.RegisterRoutes(app, c.IdentityMiddleware)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error_message"], "API key not configured")
	assert.Equal(t, 0, c.Service.CacheStats().Total)
}

func TestBackgroundServicesStopOnCancel(t *testing.T) {
	c, err := New(Deps{Cfg: testConfig(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c.StartBackgroundServices(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background services did not stop")
	}
}
