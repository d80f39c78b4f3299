package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstudy/internal/config"
	"smartstudy/internal/gateway"
	"smartstudy/internal/gatewaytest"
	"smartstudy/internal/logger"
	"smartstudy/internal/models"
)

func testConfig(t *testing.T, backendURL string) *config.Config {
	return &config.Config{
		BackendURL:           backendURL,
		GatewayMode:          "http",
		GeminiModel:          "gemini-2.0-flash",
		GeminiConcurrentReqs: 1,
		StoreBackend:         "memory",
		StorePath:            t.TempDir(),
		StoreProfile:         "test",
		Port:                 "0",
		FrontendURL:          "http://localhost:3000",
		Env:                  "test",
		LogLevel:             "error",
	}
}

func TestNew_Backends(t *testing.T) {
	_, srv := gatewaytest.Start(t)
	mr := miniredis.RunT(t)

	for _, backend := range []string{"memory", "file", "redis"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, srv.URL)
			cfg.StoreBackend = backend
			cfg.RedisURL = "redis://" + mr.Addr()

			a, err := New(context.Background(), cfg, logger.NewNop())
			require.NoError(t, err)
			defer a.Close()

			ctx := context.Background()
			sum := a.Summary(ctx)
			_, err = sum.SetText(ctx, "persist me")
			require.NoError(t, err)

			// A second service over the same store restores the text.
			assert.Equal(t, "persist me", a.Summary(ctx).Snapshot().TextInput)
			_, isHTTP := a.Gateway.(*gateway.HTTPGateway)
			assert.True(t, isHTTP)
		})
	}
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StoreBackend = "redis"
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestServer_ServesAPI(t *testing.T) {
	_, srv := gatewaytest.Start(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	server := a.Server(context.Background())
	assert.Equal(t, ":0", server.Addr)

	rr := httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/chat/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), models.SenderBot)
}
