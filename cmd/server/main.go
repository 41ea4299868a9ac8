package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/auth"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
	"github.com/p-n-ai/pai-curriculum/internal/platform/config"
	"github.com/p-n-ai/pai-curriculum/internal/platform/database"
	"github.com/p-n-ai/pai-curriculum/internal/server"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     app.handler,
		ReadTimeout: 10 * time.Second,
		// Generation waits on the model for up to the AI timeout.
		WriteTimeout: cfg.AI.Timeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store, "provider", cfg.AI.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app is the wired service and the resources it must release.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects backing services and builds the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]server.HealthChecker{}

	profile, err := curriculum.LoadProfile(cfg.GenerationProfile)
	if err != nil {
		return nil, fmt.Errorf("load generation profile: %w", err)
	}

	registry, err := newRegistry(cfg.AI)
	if err != nil {
		return nil, err
	}

	var (
		st     store.Store
		events pipeline.EventLogger = pipeline.NopEventLogger{}
	)
	switch cfg.Store {
	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			slog.Info("database schema applied")
		}
		pg, err := store.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		st = pg
		events = pipeline.NewPostgresEventLogger(db.Pool)
		checks["database"] = db
	default:
		slog.Warn("using in-memory store; data is lost on restart")
		st = store.NewMemoryStore()
	}

	var quota ai.Quota
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		checks["cache"] = c
		quota = ai.NewRedisQuota(c, cfg.AI.DailyTokenBudget)
	} else {
		quota = ai.NewInMemoryQuota(cfg.AI.DailyTokenBudget)
	}

	orch, err := pipeline.New(pipeline.Config{
		Providers: registry,
		Profile:   profile,
		Store:     st,
		Quota:     quota,
		Events:    events,
		Timeout:   cfg.AI.Timeout(),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	a.handler = server.New(server.Config{
		Orchestrator: orch,
		Auth:         auth.NewAuthenticator(cfg.Auth.JWTSecret),
		Checks:       checks,
	}).Handler()
	return a, nil
}

// newRegistry registers the configured completion provider as primary.
func newRegistry(cfg config.AIConfig) (*ai.Registry, error) {
	registry := ai.NewRegistry()
	switch cfg.Provider {
	case "google":
		registry.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Model)))
	case "openai":
		registry.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.Model)))
	case "deepseek":
		registry.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithDefaultModel(cfg.Model)))
	case "anthropic":
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("configure anthropic: %w", err)
		}
		registry.Register("anthropic", p)
	case "openrouter":
		registry.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithOpenRouterModel(cfg.Model)))
	case "ollama":
		registry.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithOllamaModel(cfg.Model)))
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	slog.Info("AI provider configured", "provider", cfg.Provider, "model", cfg.Model)
	return registry, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
