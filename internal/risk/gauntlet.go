// Package risk implements the executor's pre-trade gauntlet state: the
// position-size cap, the outbound rate-limit clock, and an operator
// emergency-stop toggle. Adapted from a richer daily-loss/drawdown/
// consecutive-loss-cooldown risk manager whose machinery has no
// analogue in this core's single-gauntlet contract.
package risk

import (
	"sync"
	"time"
)

// Config bounds the gauntlet's position-size and rate-limit checks.
type Config struct {
	MaxPositionSizeUSDC float64
	MinRequestInterval  time.Duration
}

// Gauntlet guards Execute with the position-size cap and the rate-limit
// spacing clock, and lets an operator halt trading without restarting
// the process.
type Gauntlet struct {
	mu sync.Mutex

	cfg           Config
	emergencyStop bool
	lastRequest   time.Time
	now           func() time.Time
	sleep         func(time.Duration)
}

// New constructs a Gauntlet.
func New(cfg Config) *Gauntlet {
	return &Gauntlet{cfg: cfg, now: time.Now, sleep: time.Sleep}
}

// CheckPositionSize rejects a signal whose size_usdc exceeds the
// configured maximum. Applies in dry-run too.
func (g *Gauntlet) CheckPositionSize(sizeUSDC float64) bool {
	return sizeUSDC <= g.cfg.MaxPositionSizeUSDC
}

// Throttle blocks until MinRequestInterval has elapsed since the last
// outbound request.
func (g *Gauntlet) Throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	elapsed := g.now().Sub(g.lastRequest)
	if elapsed < g.cfg.MinRequestInterval {
		g.sleep(g.cfg.MinRequestInterval - elapsed)
	}
	g.lastRequest = g.now()
}

// SetEmergencyStop toggles the operator kill switch.
func (g *Gauntlet) SetEmergencyStop(stop bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emergencyStop = stop
}

// EmergencyStop reports whether the kill switch is active.
func (g *Gauntlet) EmergencyStop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergencyStop
}
