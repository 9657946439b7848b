package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/config"
	"github.com/sole-vault/shoe-studio/internal/handlers"
	"github.com/sole-vault/shoe-studio/internal/imagegen"
	"github.com/sole-vault/shoe-studio/internal/services"
	"github.com/sole-vault/shoe-studio/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Shoe Studio")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	generator, err := imagegen.New(ctx, imagegen.Config{
		APIKey:   cfg.GeminiAPIKey,
		Endpoint: cfg.GeminiAPIEndpoint,
		Model:    cfg.GeminiModelImage,
		Backend:  cfg.ImageBackend,
	})
	if err != nil {
		// Keep serving; every generation reports the configuration problem.
		log.Error().Err(err).Msg("Image generator unavailable")
		generator = imagegen.Unavailable(err)
	}

	studio := services.NewStudio(generator)
	go studio.RunSweeper(ctx, cfg.SessionSweepInt, cfg.SessionIdleTTL)

	sessions := session.NewManager(cfg.SessionSecret, cfg.CookieSecure, cfg.CookieMaxAge())
	h := handlers.NewHandler(studio, generator)
	r := handlers.NewRouter(h, sessions.Middleware)

	// No WriteTimeout: /v1/images and /ws wait for the provider without a deadline.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Web UI listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Shoe Studio exited")
}
