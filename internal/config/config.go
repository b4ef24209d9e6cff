package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shalloville/shalloville/pkg/variables"
	"go.uber.org/fx"
)

var ErrMissingVariable = errors.New("missing required variable")

const (
	DEFAULT_EMPTY_TIMEOUT = 30 * time.Second
	DEFAULT_TOKEN_TTL     = 10 * time.Minute
)

type Config struct {
	// Realtime endpoint, usually wss://.
	URL       string
	APIKey    string
	APISecret string

	DiagnosticsPort string
	LogLevel        slog.Level

	EmptyTimeout time.Duration
	TokenTTL     time.Duration
}

// HTTPURL is the server API base derived from the realtime endpoint.
func (c *Config) HTTPURL() string {
	return HTTPURL(c.URL)
}

func HTTPURL(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}

func (c *Config) Validate() error {
	var err error
	if c.URL == "" {
		err = errors.Join(err, fmt.Errorf("%w: %s", ErrMissingVariable, variables.LIVEKIT_URL))
	}
	if c.APIKey == "" {
		err = errors.Join(err, fmt.Errorf("%w: %s", ErrMissingVariable, variables.LIVEKIT_API_KEY))
	}
	if c.APISecret == "" {
		err = errors.Join(err, fmt.Errorf("%w: %s", ErrMissingVariable, variables.LIVEKIT_API_SECRET))
	}
	return err
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func Load() (*Config, error) {
	cfg := &Config{
		URL:             variables.Env(variables.LIVEKIT_URL, ""),
		APIKey:          variables.Env(variables.LIVEKIT_API_KEY, ""),
		APISecret:       variables.Secret(variables.LIVEKIT_API_SECRET),
		DiagnosticsPort: variables.Env(variables.DIAGNOSTICS_HTTP_PORT_NAME, variables.DIAGNOSTICS_HTTP_PORT_DEFAULT),
		LogLevel:        parseLevel(variables.Env(variables.LOG_LEVEL, variables.LOG_LEVEL_DEFAULT)),
		EmptyTimeout:    DEFAULT_EMPTY_TIMEOUT,
		TokenTTL:        DEFAULT_TOKEN_TTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var Module = fx.Module("config", fx.Provide(Load))
