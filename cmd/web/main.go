package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"photo-studio/internal/app"
	"photo-studio/internal/config"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/httpclient"
	"photo-studio/internal/logger"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
	"photo-studio/internal/webapi"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     log,
	})

	gw, err := app.NewGateway(ctx, cfg, httpClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway init failed")
	}

	library, closer, err := app.OpenPresets(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("preset store init failed")
	}
	defer closer.Close()

	translator := friendlyerr.New(log)
	hub := webapi.NewHub(log)
	sessions := session.NewStore(session.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		New: hub.SessionFactory(studio.Options{
			Gateway:    gw,
			Translator: translator,
			Logger:     log,
		}),
	})
	defer sessions.Close()

	go sessions.RunEvictor(time.Minute, ctx.Done(), func(keys []string) {
		for _, key := range keys {
			hub.Drop(key)
		}
		log.Info().Int("count", len(keys)).Msg("idle sessions evicted")
	})

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	api := webapi.New(webapi.Options{
		Sessions:       sessions,
		Presets:        library,
		Hub:            hub,
		Translator:     translator,
		Logger:         log,
		Static:         staticSub,
		RateLimit:      120,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.WebAddr).Str("backend", cfg.AIBackend).Msg("web started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}
}
