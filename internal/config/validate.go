package config

import "fmt"

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be > 0, got %f", c.MaxPositionSize)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be > 0, got %d", c.MaxPositions)
	}
	if c.Ingest.ReconnectAttempts <= 0 {
		return fmt.Errorf("ingest.reconnect_attempts must be > 0, got %d", c.Ingest.ReconnectAttempts)
	}
	if c.Ingest.InitialBackoff <= 0 {
		return fmt.Errorf("ingest.initial_backoff must be > 0, got %s", c.Ingest.InitialBackoff)
	}
	if c.Ingest.MaxBackoff < c.Ingest.InitialBackoff {
		return fmt.Errorf("ingest.max_backoff must be >= ingest.initial_backoff, got %s < %s", c.Ingest.MaxBackoff, c.Ingest.InitialBackoff)
	}
	if c.Ingest.QueueCapacity <= 0 {
		return fmt.Errorf("ingest.queue_capacity must be > 0, got %d", c.Ingest.QueueCapacity)
	}
	if c.Ingest.PollTimeout <= 0 {
		return fmt.Errorf("ingest.poll_timeout must be > 0, got %s", c.Ingest.PollTimeout)
	}
	if c.Parser.DefaultCooldown < 0 {
		return fmt.Errorf("parser.default_cooldown must be >= 0, got %s", c.Parser.DefaultCooldown)
	}
	if c.Discovery.GlobalLimit <= 0 {
		return fmt.Errorf("discovery.global_limit must be > 0, got %d", c.Discovery.GlobalLimit)
	}
	if c.Discovery.MinRequestSpacing < 0 {
		return fmt.Errorf("discovery.min_request_spacing must be >= 0, got %s", c.Discovery.MinRequestSpacing)
	}
	if c.Discovery.MaxRetries < 0 {
		return fmt.Errorf("discovery.max_retries must be >= 0, got %d", c.Discovery.MaxRetries)
	}
	if c.Execution.MinRequestInterval < 0 {
		return fmt.Errorf("execution.min_request_interval must be >= 0, got %s", c.Execution.MinRequestInterval)
	}
	if c.Execution.MaxValidPrice <= c.Execution.MinValidPrice {
		return fmt.Errorf("execution.max_valid_price must be > execution.min_valid_price, got %f <= %f", c.Execution.MaxValidPrice, c.Execution.MinValidPrice)
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path must not be empty")
	}
	if c.Store.JournalDir == "" {
		return fmt.Errorf("store.journal_dir must not be empty")
	}
	return nil
}
