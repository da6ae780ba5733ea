package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/config"
	"github.com/anshumansp/Business-Consultant-Agent/internal/database"
	"github.com/anshumansp/Business-Consultant-Agent/internal/handlers"
	"github.com/anshumansp/Business-Consultant-Agent/internal/logger"
	"github.com/anshumansp/Business-Consultant-Agent/internal/middleware"
	"github.com/anshumansp/Business-Consultant-Agent/internal/relay"
	"github.com/anshumansp/Business-Consultant-Agent/internal/router"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream/deepseek"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream/gemini"
)

func main() {
	log.Info("🚀 Starting chat relay...")

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("✗ Configuration invalid", "err", err)
	}

	lg, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("✗ Logger setup failed", "err", err)
	}
	lg.Info("✓ Environment variables loaded", "env", cfg.Env, "provider", cfg.Provider)

	ctx := context.Background()

	// ──── Step 2: Initialize Upstream Client ────
	client, closer, err := newUpstream(ctx, cfg)
	if err != nil {
		lg.Fatal("✗ Upstream client initialization failed", "err", err)
	}
	defer closer.Close()
	if cfg.UpstreamConcurrency > 0 {
		client = upstream.WithConcurrency(client, cfg.UpstreamConcurrency)
	}
	lg.Info("✓ Upstream client initialized", "provider", cfg.Provider, "max_concurrent", cfg.UpstreamConcurrency)

	// ──── Step 3: Initialize Rate Limiter ────
	var limiter *middleware.RateLimiter
	if cfg.ChatRateLimit > 0 {
		var store middleware.Store
		if cfg.RedisURL != "" {
			rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				lg.Fatal("✗ Redis connection failed", "err", err)
			}
			defer rdb.Close()
			store = middleware.NewRedisStore(rdb, "chat_ratelimit:")
			lg.Info("✓ Redis connected")
		} else {
			mem := middleware.NewMemoryStore(cfg.ChatRateWindow)
			defer mem.Close()
			store = mem
		}
		limiter = middleware.NewRateLimiter(store, cfg.ChatRateLimit, cfg.ChatRateWindow, lg)
		lg.Info("✓ Rate limiter enabled", "limit", cfg.ChatRateLimit, "window", cfg.ChatRateWindow)
	}

	// ──── Step 4: Initialize Auth ────
	var authenticator authn.Authenticator
	if cfg.JWTSecret != "" {
		authenticator = authn.NewJWT(cfg.JWTSecret)
		lg.Info("✓ Bearer authentication required on chat routes")
	}

	// ──── Step 5: Initialize Handlers ────
	svc := relay.New(client, relay.Options{
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		DefaultSystemPrompt: cfg.DefaultSystemPrompt,
	})
	chatHandler := handlers.NewChatHandler(svc, lg)
	wsHandler := handlers.NewWSHandler(svc, cfg.AllowedOrigins, lg)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(router.Deps{
		Logger:            lg,
		AllowedOrigins:    cfg.AllowedOrigins,
		ExposePanicDetail: cfg.IsDevelopment(),
		Chat:              chatHandler,
		WS:                wsHandler,
		RateLimiter:       limiter,
		Authenticator:     authenticator,
	})

	// No write timeout: streamed replies are long-lived.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		lg.Info("Shutting down...")
		wsHandler.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("shutdown incomplete", "err", err)
		}
	}()

	lg.Infof("✓ Server is running on port %s", cfg.Port)
	lg.Infof("  API: http://localhost:%s/api/chat", cfg.Port)
	lg.Infof("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("Server error", "err", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newUpstream builds the configured provider. The returned closer releases
// provider resources.
func newUpstream(ctx context.Context, cfg *config.Config) (upstream.Client, io.Closer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		c, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		c, err := deepseek.New(deepseek.Config{
			APIKey:  cfg.DeepSeekAPIKey,
			BaseURL: cfg.DeepSeekBaseURL,
			Model:   cfg.DeepSeekModel,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	}
}
