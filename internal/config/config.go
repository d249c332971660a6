package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig is the full client configuration, sourced from the environment.
type AppConfig struct {
	ServerBaseURL string `env:"CARO_SERVER_BASE_URL"`
	ServerWSURL   string `env:"CARO_SERVER_WS_URL"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Authenticated account, optional; a guest identity is derived when empty.
	AccountID   string `env:"CARO_ACCOUNT_ID"`
	AccountName string `env:"CARO_ACCOUNT_NAME"`

	// Device token injected into the WS handshake and one-shot reads.
	DeviceToken string `env:"CARO_DEVICE_TOKEN"`

	ReconnectAttempts int           `env:"CARO_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"CARO_RECONNECT_DELAY" envDefault:"1s"`

	DebounceWindow time.Duration `env:"CARO_RECONCILE_DEBOUNCE" envDefault:"150ms"`
	FinishGrace    time.Duration `env:"CARO_FINISH_GRACE" envDefault:"3s"`

	RecentResultsCap int `env:"CARO_RECENT_RESULTS_CAP" envDefault:"20"`

	// Optional directory of yaml files overriding notice templates.
	NoticeTemplateDir string `env:"CARO_NOTICE_TEMPLATE_DIR"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ServerBaseURL == "" {
		return nil, errors.New("CARO_SERVER_BASE_URL is required")
	}
	if cfg.ServerWSURL == "" {
		return nil, errors.New("CARO_SERVER_WS_URL is required")
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 150 * time.Millisecond
	}
	if cfg.RecentResultsCap <= 0 {
		cfg.RecentResultsCap = 20
	}

	return cfg, nil
}
