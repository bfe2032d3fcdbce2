package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.DryRun {
		t.Fatal("expected dry_run true by default")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected log_level info, got %q", cfg.LogLevel)
	}
	if cfg.MaxPositionSize <= 0 {
		t.Fatal("expected positive max_position_size")
	}
	if cfg.MaxPositions <= 0 {
		t.Fatal("expected positive max_positions")
	}
	if cfg.Ingest.ReconnectAttempts <= 0 {
		t.Fatal("expected positive ingest.reconnect_attempts")
	}
	if cfg.Ingest.QueueCapacity != 1024 {
		t.Fatalf("expected default queue capacity 1024, got %d", cfg.Ingest.QueueCapacity)
	}
	if cfg.Discovery.GlobalLimit <= 0 {
		t.Fatal("expected positive discovery.global_limit")
	}
	if cfg.Store.DBPath == "" {
		t.Fatal("expected a default db_path")
	}
	if cfg.Store.JournalDir == "" {
		t.Fatal("expected a default journal_dir")
	}
	if cfg.StartingBalanceUSDC <= 0 {
		t.Fatal("expected positive starting_balance_usdc")
	}
	if cfg.Execution.MaxValidPrice <= cfg.Execution.MinValidPrice {
		t.Fatal("expected execution.max_valid_price > execution.min_valid_price")
	}
	if cfg.ChainID != 137 {
		t.Fatalf("expected default chain_id 137 (Polygon), got %d", cfg.ChainID)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlDoc := `
dry_run: false
log_level: debug
max_position_size: 500
max_positions: 20
ingest:
  reconnect_attempts: 3
  queue_capacity: 2048
  asset_ids:
    - "token-a"
    - "token-b"
discovery:
  global_limit: 25
store:
  db_path: /tmp/custom.db
  journal_dir: /tmp/journal
`
	f, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte(yamlDoc)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DryRun {
		t.Fatal("expected dry_run false from yaml")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level debug, got %q", cfg.LogLevel)
	}
	if cfg.MaxPositionSize != 500 {
		t.Fatalf("expected max_position_size 500, got %f", cfg.MaxPositionSize)
	}
	if cfg.MaxPositions != 20 {
		t.Fatalf("expected max_positions 20, got %d", cfg.MaxPositions)
	}
	if cfg.Ingest.ReconnectAttempts != 3 {
		t.Fatalf("expected ingest.reconnect_attempts 3, got %d", cfg.Ingest.ReconnectAttempts)
	}
	if cfg.Ingest.QueueCapacity != 2048 {
		t.Fatalf("expected ingest.queue_capacity 2048, got %d", cfg.Ingest.QueueCapacity)
	}
	if len(cfg.Ingest.AssetIDs) != 2 || cfg.Ingest.AssetIDs[0] != "token-a" {
		t.Fatalf("expected two asset ids, got %v", cfg.Ingest.AssetIDs)
	}
	if cfg.Discovery.GlobalLimit != 25 {
		t.Fatalf("expected discovery.global_limit 25, got %d", cfg.Discovery.GlobalLimit)
	}
	if cfg.Store.DBPath != "/tmp/custom.db" {
		t.Fatalf("expected custom db_path, got %q", cfg.Store.DBPath)
	}
	// Fields untouched by the YAML document retain Default()'s values.
	if cfg.Ingest.InitialBackoff != 1*time.Second {
		t.Fatalf("expected default initial backoff to survive a partial override, got %v", cfg.Ingest.InitialBackoff)
	}
}

func TestApplyEnvOverridesCredentialsAndDryRun(t *testing.T) {
	t.Setenv("POLYTRIGGER_PK", "test-pk")
	t.Setenv("POLYTRIGGER_API_KEY", "test-key")
	t.Setenv("POLYTRIGGER_API_SECRET", "test-secret")
	t.Setenv("POLYTRIGGER_API_PASSPHRASE", "test-pass")
	t.Setenv("POLYTRIGGER_DRY_RUN", "false")
	t.Setenv("POLYTRIGGER_LOG_LEVEL", "WARN")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.PrivateKey != "test-pk" {
		t.Fatalf("expected PrivateKey test-pk, got %s", cfg.PrivateKey)
	}
	if cfg.APIKey != "test-key" {
		t.Fatalf("expected APIKey test-key, got %s", cfg.APIKey)
	}
	if cfg.APISecret != "test-secret" {
		t.Fatalf("expected APISecret test-secret, got %s", cfg.APISecret)
	}
	if cfg.APIPassphrase != "test-pass" {
		t.Fatalf("expected APIPassphrase test-pass, got %s", cfg.APIPassphrase)
	}
	if cfg.DryRun {
		t.Fatal("expected DryRun false from env")
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log level lowercased to warn, got %q", cfg.LogLevel)
	}
}

func TestApplyEnvOverridesBuilderCredentials(t *testing.T) {
	t.Setenv("POLYTRIGGER_BUILDER_KEY", "builder-key")
	t.Setenv("POLYTRIGGER_BUILDER_SECRET", "builder-secret")
	t.Setenv("POLYTRIGGER_BUILDER_PASSPHRASE", "builder-pass")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.BuilderKey != "builder-key" {
		t.Fatalf("expected BuilderKey builder-key, got %s", cfg.BuilderKey)
	}
	if cfg.BuilderSecret != "builder-secret" {
		t.Fatalf("expected BuilderSecret builder-secret, got %s", cfg.BuilderSecret)
	}
	if cfg.BuilderPassphrase != "builder-pass" {
		t.Fatalf("expected BuilderPassphrase builder-pass, got %s", cfg.BuilderPassphrase)
	}
}

func TestApplyEnvDryRunTrue(t *testing.T) {
	t.Setenv("POLYTRIGGER_DRY_RUN", "1")
	cfg := Default()
	cfg.DryRun = false
	cfg.ApplyEnv()
	if !cfg.DryRun {
		t.Fatal("expected DryRun true from env '1'")
	}
}

func TestLoadFileInvalidPath(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	f, err := os.CreateTemp("", "bad-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte("{{invalid yaml")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = LoadFile(f.Name())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
