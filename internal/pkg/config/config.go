package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the agent's runtime options. Persisted user settings
// (server URL, token, enabled sensors) live in the settings store instead.
type Config struct {
	SettingsPath string        `env:"HA_AGENT_SETTINGS_PATH" envDefault:"settings.json"`
	ListenAddr   string        `env:"HA_AGENT_LISTEN_ADDR" envDefault:"127.0.0.1:8099"`
	LogLevel     string        `env:"HA_AGENT_LOG_LEVEL" envDefault:"INFO"`
	AppVersion   string        `env:"-"`
	WarmupDelay  time.Duration `env:"HA_AGENT_WARMUP_DELAY" envDefault:"5s"`
	// WebhookCheckSchedule is a cron expression; empty disables the
	// periodic webhook liveness probe.
	WebhookCheckSchedule string `env:"HA_AGENT_WEBHOOK_CHECK_SCHEDULE" envDefault:"@hourly"`
}

// FromEnv returns a Config populated from defaults and HA_AGENT_* overrides.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
