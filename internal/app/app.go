// Package app wires configuration, storage, the AI gateway and the feature
// services together for the command-line entry points.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"smartstudy/internal/config"
	"smartstudy/internal/database"
	"smartstudy/internal/gateway"
	"smartstudy/internal/handlers"
	"smartstudy/internal/logger"
	"smartstudy/internal/middleware"
	"smartstudy/internal/router"
	"smartstudy/internal/services"
	"smartstudy/internal/store"
	"smartstudy/internal/websocket"
)

// App holds the wired dependencies. Close releases them.
type App struct {
	Config  *config.Config
	Log     logger.ILogger
	Store   *store.SessionStore
	Gateway gateway.Gateway
	Hub     *websocket.Hub

	pubsub  *redis.Client
	closers []func()
}

// New opens the configured store backend and gateway.
func New(ctx context.Context, cfg *config.Config, log logger.ILogger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store.NewSessionStore(backend, cfg.StoreProfile, log)

	gw, err := a.openGateway(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = gw

	a.Hub = websocket.NewHub(a.pubsub, cfg.StoreProfile, log)
	a.Store.SetNotifier(a.Hub)
	a.closers = append(a.closers, a.Hub.Close)
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (store.Storage, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemoryStorage(), nil

	case "file":
		return store.NewFileStorage(cfg.StorePath)

	case "redis":
		clients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, clients.Close)
		a.pubsub = clients.PubSub
		a.Log.Info("app", "redis connected", nil)
		return store.NewRedisStorage(clients.Store), nil

	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.RunMigrations(ctx, pool, a.Log); err != nil {
			return nil, err
		}
		a.Log.Info("app", "postgres connected, migrations applied", nil)
		return store.NewPostgresStorage(pool), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) openGateway(ctx context.Context) (gateway.Gateway, error) {
	cfg := a.Config
	if cfg.GatewayMode == "gemini" {
		gw, err := gateway.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, a.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gw.Close)
		return gw, nil
	}
	return gateway.NewHTTPGateway(cfg.BackendURL, cfg.GatewayTimeout, a.Log), nil
}

func (a *App) Quiz(ctx context.Context) *services.Study {
	return services.NewQuiz(ctx, a.Store, a.Gateway, a.Log)
}

func (a *App) Flashcards(ctx context.Context) *services.Study {
	return services.NewFlashcards(ctx, a.Store, a.Gateway, a.Log)
}

func (a *App) Summary(ctx context.Context) *services.Summary {
	return services.NewSummary(ctx, a.Store, a.Gateway, a.Log)
}

func (a *App) Chat(ctx context.Context) *services.Chat {
	return services.NewChat(ctx, a.Store, a.Gateway, a.Log)
}

// Server builds the local API server.
func (a *App) Server(ctx context.Context) *http.Server {
	limiter := middleware.NewRateLimiter(30, time.Minute)
	a.closers = append(a.closers, limiter.Stop)

	r := router.New(router.Handlers{
		Quiz:       handlers.NewStudyHandler(a.Quiz(ctx)),
		Flashcards: handlers.NewStudyHandler(a.Flashcards(ctx)),
		Summary:    handlers.NewSummaryHandler(a.Summary(ctx)),
		Chat:       handlers.NewChatHandler(a.Chat(ctx)),
		Hub:        a.Hub,
	}, limiter, a.Config.FrontendURL)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", a.Config.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
