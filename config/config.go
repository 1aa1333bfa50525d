// Package config loads runtime configuration from environment variables.
// Defaults are applied first, then overridden by anything present in the
// environment (main loads a .env file into it beforehand).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every variable the tracker reads, e.g.
// VACC_POLL_INTERVAL or VACC_STALE_THRESHOLD.
const EnvPrefix = "VACC_"

type Config struct {
	// FeedURL is the VATSIM v3 data feed endpoint.
	FeedURL string `koanf:"feed_url"`

	// PollInterval is the delay between reconciliation cycles.
	PollInterval time.Duration `koanf:"poll_interval"`

	// StaleThreshold is how long a previously seen participant may be
	// absent from snapshots before its session is closed. One value for
	// every ingestion path.
	StaleThreshold time.Duration `koanf:"stale_threshold"`

	// FetchTimeout bounds a single feed request.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// DataDir holds the embedded store with the ephemeral state snapshot.
	DataDir string `koanf:"data_dir"`

	// HistoryLimit caps the in-memory closed-session list.
	HistoryLimit int `koanf:"history_limit"`

	// ListenAddr is the HTTP API bind address.
	ListenAddr string `koanf:"listen_addr"`

	// RosterURL is the vACC roster service base URL; empty disables
	// roster notifications.
	RosterURL string `koanf:"roster_url"`

	Database Database `koanf:"db"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func defaults() Config {
	return Config{
		FeedURL:        "https://data.vatsim.net/v3/vatsim-data.json",
		PollInterval:   15 * time.Second,
		StaleThreshold: 2 * time.Minute,
		FetchTimeout:   10 * time.Second,
		DataDir:        "data",
		HistoryLimit:   1000,
		ListenAddr:     ":8080",
		LogLevel:       "info",
		LogFormat:      "console",
		Database: Database{
			Host:    "localhost",
			Port:    "5432",
			User:    "vacc",
			Name:    "vacc",
			SSLMode: "disable",
		},
	}
}

// Load builds the configuration from defaults plus the environment.
// VACC_DB_HOST maps to db.host, everything else maps one-to-one.
func Load() (Config, error) {
	cfg := defaults()

	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if rest, ok := strings.CutPrefix(s, "db_"); ok {
			return "db." + rest
		}
		return s
	}), nil)
	if err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("poll_interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.StaleThreshold < cfg.PollInterval {
		return cfg, fmt.Errorf("stale_threshold %s must not be shorter than poll_interval %s",
			cfg.StaleThreshold, cfg.PollInterval)
	}
	if cfg.HistoryLimit <= 0 {
		return cfg, fmt.Errorf("history_limit must be positive, got %d", cfg.HistoryLimit)
	}
	return cfg, nil
}
