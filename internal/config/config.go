// Package config defines the frozen Settings value consumed by every
// collaborator, built once at startup from defaults, an optional YAML
// file, and environment overrides.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polytrigger/polytrigger/internal/event"
)

// Config is the root settings value. It is built once at process start
// and never mutated after being handed to the orchestrator constructor
// (REDESIGN FLAGS §9: no mutable global singleton).
type Config struct {
	PrivateKey    string `yaml:"private_key"`
	ChainID       int64  `yaml:"chain_id"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	APIPassphrase string `yaml:"api_passphrase"`

	BuilderKey        string `yaml:"builder_key"`
	BuilderSecret     string `yaml:"builder_secret"`
	BuilderPassphrase string `yaml:"builder_passphrase"`

	DryRun          bool    `yaml:"dry_run"`
	LogLevel        string  `yaml:"log_level"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	MaxPositions    int     `yaml:"max_positions"`

	// StartingBalanceUSDC seeds the portfolio's cash accounting at
	// startup. No catalog or CLOB endpoint attested anywhere in this
	// codebase's dependency surface exposes a live free-balance read,
	// so the operator declares the account's funded USDC balance here;
	// every fill afterward is tracked internally by the portfolio
	// manager rather than re-queried from the venue.
	StartingBalanceUSDC float64 `yaml:"starting_balance_usdc"`

	Execution ExecutionConfig `yaml:"execution"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Parser    ParserConfig    `yaml:"parser"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

// ExecutionConfig governs the gauntlet's rate-limit spacing and the
// executor's price-derivation tolerances.
type ExecutionConfig struct {
	MinRequestInterval  time.Duration `yaml:"min_request_interval"`
	BuyCrossMultiplier  float64       `yaml:"buy_cross_multiplier"`
	SellCrossMultiplier float64       `yaml:"sell_cross_multiplier"`
	MaxSpreadPercent    float64       `yaml:"max_spread_percent"`
	MinValidPrice       float64       `yaml:"min_valid_price"`
	MaxValidPrice       float64       `yaml:"max_valid_price"`
}

// IngestConfig governs CLOB stream reconnect behavior and feed polling.
// InitialBackoff is the CLOB source's fixed reconnect delay; it does not
// grow and no attempt count applies. ReconnectAttempts, MaxBackoff,
// HeartbeatInterval and PollTimeout are defaulted and validated but are
// not read by the ingest sources or the orchestrator.
type IngestConfig struct {
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	PollTimeout       time.Duration `yaml:"poll_timeout"`

	FeedURLs     []string      `yaml:"feed_urls"`
	FeedInterval time.Duration `yaml:"feed_interval"`

	AssetIDs []string `yaml:"asset_ids"`
}

// ParserConfig carries fallback parser behavior plus the rule sets
// installed at startup; discovery strategies may install more at runtime.
type ParserConfig struct {
	DefaultCooldown time.Duration         `yaml:"default_cooldown"`
	ThresholdRules  []event.ThresholdRule `yaml:"threshold_rules"`
	KeywordRules    []event.KeywordRule   `yaml:"keyword_rules"`
}

// DiscoveryConfig governs the catalog client and subscription manager.
type DiscoveryConfig struct {
	BaseURL           string        `yaml:"base_url"`
	GlobalLimit       int           `yaml:"global_limit"`
	MinRequestSpacing time.Duration `yaml:"min_request_spacing"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`

	// RescanInterval, if positive, re-runs every configured strategy on a
	// ticker so new markets matching a strategy's criteria get picked up
	// without a restart. Zero disables periodic rescanning; strategies
	// still run once at startup.
	RescanInterval time.Duration `yaml:"rescan_interval"`
	Strategies     []event.DiscoveryStrategy `yaml:"strategies"`
}

// StoreConfig locates the embedded store and journal directory.
type StoreConfig struct {
	DBPath     string `yaml:"db_path"`
	JournalDir string `yaml:"journal_dir"`
}

// APIConfig controls the optional operator-facing observability server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelegramConfig controls the optional observer notifier.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Default returns the documented configuration defaults, supplemented
// with ambient fields the operator-facing table is silent on.
func Default() Config {
	return Config{
		ChainID:             137,
		DryRun:              true,
		LogLevel:            "info",
		MaxPositionSize:     1000,
		MaxPositions:        10,
		StartingBalanceUSDC: 10000,
		Execution: ExecutionConfig{
			MinRequestInterval:  200 * time.Millisecond,
			BuyCrossMultiplier:  1.01,
			SellCrossMultiplier: 0.99,
			MaxSpreadPercent:    0.50,
			MinValidPrice:       0.01,
			MaxValidPrice:       0.99,
		},
		Ingest: IngestConfig{
			ReconnectAttempts: 5,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        60 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			QueueCapacity:     1024,
			PollTimeout:       100 * time.Millisecond,
			FeedInterval:      5 * time.Minute,
		},
		Parser: ParserConfig{
			DefaultCooldown: 60 * time.Second,
		},
		Discovery: DiscoveryConfig{
			GlobalLimit:       50,
			MinRequestSpacing: 100 * time.Millisecond,
			MaxRetries:        5,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        60 * time.Second,
			RescanInterval:    10 * time.Minute,
		},
		Store: StoreConfig{
			DBPath:     "polytrigger.db",
			JournalDir: "journal",
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

// LoadFile loads YAML from path over Default(), so a partial document
// only overrides the fields it sets.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv layers environment-variable overrides on top of an already
// loaded Config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("POLYTRIGGER_PK"); v != "" {
		c.PrivateKey = v
	}
	if v := os.Getenv("POLYTRIGGER_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("POLYTRIGGER_API_SECRET"); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv("POLYTRIGGER_API_PASSPHRASE"); v != "" {
		c.APIPassphrase = v
	}
	if v := os.Getenv("POLYTRIGGER_BUILDER_KEY"); v != "" {
		c.BuilderKey = v
	}
	if v := os.Getenv("POLYTRIGGER_BUILDER_SECRET"); v != "" {
		c.BuilderSecret = v
	}
	if v := os.Getenv("POLYTRIGGER_BUILDER_PASSPHRASE"); v != "" {
		c.BuilderPassphrase = v
	}
	if v := os.Getenv("POLYTRIGGER_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("POLYTRIGGER_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}
