// Package app wires configuration into the components both binaries share.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"photo-studio/internal/config"
	"photo-studio/internal/gateway"
	"photo-studio/internal/gemini"
	"photo-studio/internal/genaisdk"
	"photo-studio/internal/openaitext"
	"photo-studio/internal/presets"
)

// NewGateway picks the AI backend named by cfg.AIBackend.
func NewGateway(ctx context.Context, cfg config.Config, httpClient *http.Client, logger zerolog.Logger) (gateway.Gateway, error) {
	logger = logger.With().Str("backend", cfg.AIBackend).Logger()

	rest := func() *gemini.Client {
		return gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			ImageModel: cfg.GeminiImageModel,
			TextModel:  cfg.GeminiTextModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}

	switch cfg.AIBackend {
	case config.BackendGemini, "":
		return rest(), nil
	case config.BackendGenAI:
		client, err := genaisdk.New(ctx, genaisdk.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			ImageModel: cfg.GeminiImageModel,
			TextModel:  cfg.GeminiTextModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("genai client: %w", err)
		}
		return client, nil
	case config.BackendGeminiOpenAI:
		text := openaitext.New(openaitext.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		return gateway.Compose(rest(), text), nil
	}
	return nil, fmt.Errorf("unknown AI backend %q", cfg.AIBackend)
}

// OpenPresets opens the preset store named by cfg.PresetStore.
func OpenPresets(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*presets.Library, io.Closer, error) {
	kv, closer, err := presets.Open(ctx, presets.Config{
		Backend:       cfg.PresetStore,
		Dir:           cfg.PresetDir,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		DatabaseDSN:   cfg.DatabaseDSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open preset store %q: %w", cfg.PresetStore, err)
	}
	logger.Info().Str("store", cfg.PresetStore).Msg("preset store ready")
	return presets.NewLibrary(kv, logger), closer, nil
}
