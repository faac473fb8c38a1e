// Package config loads comuta settings. Sources, lowest precedence first:
// built-in defaults, a .env file, COMUTA_* environment variables, and the
// command-line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

// EnvPrefix marks the variables read from the environment. A double
// underscore separates sections: COMUTA_DEVICE__URL sets device.url.
const EnvPrefix = "COMUTA_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Device DeviceConfig `koanf:"device"`
	Server ServerConfig `koanf:"server"`
	Toggle ToggleConfig `koanf:"toggle"`
	Log    LogConfig    `koanf:"log"`
	UI     UIConfig     `koanf:"ui"`
}

type DeviceConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"` // 0 means no timeout
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type ToggleConfig struct {
	Policy string `koanf:"policy" validate:"oneof=concurrent drop"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
	File   string `koanf:"file"` // debug log for the terminal view
}

type UIConfig struct {
	Theme string `koanf:"theme" validate:"oneof=classic neon mono"`
	Label string `koanf:"label" validate:"max=64"` // empty keeps the built-in caption
}

// Defaults returns the flat key/value defaults loaded before anything else.
func Defaults() map[string]any {
	return map[string]any{
		"device.timeout": "0s",
		"server.addr":    ":3000",
		"toggle.policy":  "concurrent",
		"log.level":      "info",
		"log.format":     "text",
		"log.file":       "comuta-debug.log",
		"ui.theme":       "classic",
	}
}

// Load builds the configuration. overrides uses the same dotted keys as
// Defaults and wins over every other source.
func Load(overrides map[string]any) (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		logger.Error("could not unmarshal config", "error", err)
		return nil, err
	}
	normalize(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(
		strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
		"__",
		".",
	)
}

func normalize(cfg *Config) {
	cfg.Device.URL = strings.TrimSpace(cfg.Device.URL)
	cfg.Toggle.Policy = strings.ToLower(strings.TrimSpace(cfg.Toggle.Policy))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.UI.Theme = strings.ToLower(strings.TrimSpace(cfg.UI.Theme))
	cfg.UI.Label = strings.TrimSpace(cfg.UI.Label)
}
