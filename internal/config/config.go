package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	// Server
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// NATS event stream
	NatsURL       string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	EventsEnabled bool   `env:"EVENTS_ENABLED" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// LogFile enables a rotating file sink in addition to stdout.
	LogFile string `env:"LOG_FILE"`

	// Logical clock: one slot per interval.
	SlotInterval time.Duration `env:"SLOT_INTERVAL" envDefault:"400ms"`
	// WindowSlots is the fixed rate window in slots (~24h at 400ms).
	WindowSlots uint64 `env:"WINDOW_SLOTS" envDefault:"216000"`

	// ScopesFile points at a YAML registry mapping scope names to bit
	// positions. Empty means the built-in read/write/admin convention.
	ScopesFile string `env:"SCOPES_FILE"`

	// Per-IP limits on the HTTP surface. The engine's own per-credential
	// fixed-window limiter is separate and always on.
	IPRatePerSecond int `env:"IP_RATE_PER_SECOND" envDefault:"50"`
	IPBurst         int `env:"IP_BURST" envDefault:"100"`

	// CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
