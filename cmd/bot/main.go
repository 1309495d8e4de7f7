package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"photo-studio/internal/app"
	"photo-studio/internal/config"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/handlers"
	"photo-studio/internal/httpclient"
	"photo-studio/internal/logger"
	"photo-studio/internal/mediagroup"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
	"photo-studio/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
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

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     log,
		Debug:      cfg.Debug,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("telegram init failed")
	}

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
	sessions := session.NewStore(session.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		New: func(key string) *studio.Session {
			return studio.NewSession(studio.Options{
				Gateway:    gw,
				Translator: translator,
				Logger:     log.With().Str("session", key).Logger(),
			})
		},
	})
	defer sessions.Close()

	go sessions.RunEvictor(time.Minute, ctx.Done(), func(keys []string) {
		log.Info().Int("count", len(keys)).Msg("idle sessions evicted")
	})

	handler := handlers.New(handlers.Options{
		Telegram:   tg,
		Sessions:   sessions,
		Presets:    library,
		Translator: translator,
		Logger:     log,
	})

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
	})
	defer aggregator.Stop()
	handler.SetMediaGroupAggregator(aggregator)

	log.Info().Str("username", tg.Username()).Str("backend", cfg.AIBackend).Msg("bot started")

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				log.Info().Msg("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("handle update failed")
				}
			}(update)
		}
	}
}
