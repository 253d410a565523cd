// Command server runs the interview backend: the public session API, the
// voice-provider webhook receiver, and the token-guarded admin surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mockvox/go-interview-backend/internal/config"
	"github.com/mockvox/go-interview-backend/internal/feedback"
	httpapi "github.com/mockvox/go-interview-backend/internal/http"
	"github.com/mockvox/go-interview-backend/internal/observability"
	"github.com/mockvox/go-interview-backend/internal/repo"
	"github.com/mockvox/go-interview-backend/internal/retell"
	"github.com/mockvox/go-interview-backend/internal/services"
	"github.com/mockvox/go-interview-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; ignored when the file is absent.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	provider := retell.NewClient(cfg.Retell.BaseURL, cfg.Retell.APIKey, cfg.Retell.Timeout)

	gen, err := newGenerator(ctx, cfg.Feedback)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Feedback.Provider).Msg("feedback provider setup failed")
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{DB: db, Provider: provider, Gen: gen}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("feedback_provider", cfg.Feedback.Provider).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}

// newGenerator selects the configured feedback backend.
func newGenerator(ctx context.Context, cfg config.FeedbackConfig) (services.Generator, error) {
	switch cfg.Provider {
	case "groq":
		return feedback.NewChatClient(feedback.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.Timeout), nil
	case "openrouter":
		return feedback.NewChatClient(feedback.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.Timeout), nil
	case "gemini":
		return feedback.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, errors.New("unknown feedback provider: " + cfg.Provider)
	}
}
