package config

import (
	"fmt"
	"strings"
)

// ApplyRolloutPhase applies a staged rollout preset, letting an operator
// move from dry-run observation to conservative live trading without
// hand-editing every field. Supported phases:
//   - shadow:     dry-run only, no order submission.
//   - live-small: live trading with a conservative position-size cap.
//   - live:       live trading using the configured values as-is.
func ApplyRolloutPhase(cfg *Config, phase string) error {
	p := strings.ToLower(strings.TrimSpace(phase))
	if p == "" {
		return nil
	}

	switch p {
	case "shadow", "live-dryrun", "live-dry-run":
		cfg.DryRun = true
	case "live-small", "small":
		cfg.DryRun = false
		clampMaxFloat(&cfg.MaxPositionSize, 100)
	case "live":
		cfg.DryRun = false
	default:
		return fmt.Errorf("unknown rollout phase %q (supported: shadow|live-small|live)", phase)
	}

	return nil
}

func clampMaxFloat(v *float64, max float64) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}
