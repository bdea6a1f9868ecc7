package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	// Provider selects the chat-completion transport.
	Provider        string
	ProviderBaseURL string
	// ProviderAPIKey, when set, is used instead of the SSM token.
	ProviderAPIKey string
	ParamPrefix    string

	MaxHistoryMessages int
	LogLevel           slog.Level

	// Local dev server only.
	Port          string
	AllowedOrigin string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Provider:           strings.ToLower(getEnvDefault("PROVIDER", ProviderOpenAI)),
		ProviderBaseURL:    os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:     strings.TrimSpace(os.Getenv("PROVIDER_API_KEY")),
		ParamPrefix:        strings.TrimSpace(os.Getenv("PARAM_PREFIX")),
		MaxHistoryMessages: envInt("MAX_HISTORY_MESSAGES", 0),
		LogLevel:           envLevel("LOG_LEVEL", slog.LevelInfo),
		Port:               getEnvDefault("PORT", "8888"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "*"),
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return Config{}, fmt.Errorf("config: unsupported PROVIDER %q", cfg.Provider)
	}
	if cfg.ProviderAPIKey == "" && cfg.ParamPrefix == "" {
		return Config{}, fmt.Errorf("config: one of PROVIDER_API_KEY or PARAM_PREFIX must be set")
	}
	return cfg, nil
}

// UsesParamStore reports whether the API key must be fetched from SSM.
func (c Config) UsesParamStore() bool {
	return c.ProviderAPIKey == ""
}

// NewLogger returns a JSON slog logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envLevel(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return def
	}
	return lvl
}
