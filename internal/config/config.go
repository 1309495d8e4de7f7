package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/99designs/keyring"
)

const keyringService = "photo-studio"

const (
	BackendGemini       = "gemini"
	BackendGenAI        = "genai"
	BackendGeminiOpenAI = "gemini+openai"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Debug    bool

	TelegramToken string

	AIBackend        string
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiImageModel string
	GeminiTextModel  string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string

	PresetStore   string
	PresetDir     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseDSN   string

	WebAddr            string
	SessionIdleTimeout time.Duration

	PreferIPv4         bool
	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
}

// SecretSource looks up a secret that is not set in the environment.
type SecretSource func(key string) (string, error)

// Load reads the environment. Secrets missing from the environment are looked
// up in the OS keyring.
func Load() (Config, error) {
	return LoadWith(keyringSource)
}

func LoadWith(secrets SecretSource) (Config, error) {
	cfg := Config{
		AppEnv:             strings.ToLower(getEnv("APP_ENV", "production")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "")),
		Debug:              getEnvBool("DEBUG", false),
		AIBackend:          strings.ToLower(getEnv("AI_BACKEND", BackendGemini)),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion:   getEnv("GEMINI_API_VERSION", "v1beta"),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", ""),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", ""),
		PresetStore:        strings.ToLower(getEnv("PRESET_STORE", "file")),
		PresetDir:          getEnv("PRESET_DIR", "data/presets"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		DatabaseDSN:        getEnv("DATABASE_DSN", ""),
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
	}

	cfg.TelegramToken = secret(secrets, "TELEGRAM_BOT_TOKEN")
	cfg.GeminiAPIKey = secret(secrets, "GEMINI_API_KEY")
	cfg.OpenAIAPIKey = secret(secrets, "OPENAI_API_KEY")
	cfg.RedisPassword = strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))

	switch cfg.AIBackend {
	case BackendGemini, BackendGenAI:
	case BackendGeminiOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, errors.New("OPENAI_API_KEY is required for AI_BACKEND=gemini+openai")
		}
	default:
		return Config{}, fmt.Errorf("unknown AI_BACKEND %q", cfg.AIBackend)
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	switch cfg.PresetStore {
	case "file", "redis", "sqlite":
	case "mysql":
		if cfg.DatabaseDSN == "" {
			return Config{}, errors.New("DATABASE_DSN is required for PRESET_STORE=mysql")
		}
	default:
		return Config{}, fmt.Errorf("unknown PRESET_STORE %q", cfg.PresetStore)
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

// RequireTelegram is checked by the bot binary only; the web server runs
// without a token.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func secret(secrets SecretSource, key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if secrets == nil {
		return ""
	}
	value, err := secrets(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func keyringSource(key string) (string, error) {
	ring, err := keyring.Open(keyring.Config{ServiceName: keyringService})
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
