package risk

import (
	"testing"
	"time"
)

func TestCheckPositionSize(t *testing.T) {
	g := New(Config{MaxPositionSizeUSDC: 1000})
	if !g.CheckPositionSize(1000) {
		t.Fatal("expected size equal to the cap to pass")
	}
	if g.CheckPositionSize(1000.01) {
		t.Fatal("expected size above the cap to fail")
	}
}

func TestThrottle_WaitsOutMinimumInterval(t *testing.T) {
	g := New(Config{MinRequestInterval: 100 * time.Millisecond})
	now := time.Unix(1700000000, 0)
	var slept time.Duration
	g.now = func() time.Time { return now }
	g.sleep = func(d time.Duration) { slept += d; now = now.Add(d) }

	g.Throttle()
	if slept != 0 {
		t.Fatalf("expected no sleep on first call, got %v", slept)
	}

	now = now.Add(30 * time.Millisecond)
	g.Throttle()
	if slept != 70*time.Millisecond {
		t.Fatalf("expected to sleep the remaining 70ms, got %v", slept)
	}
}

func TestEmergencyStop_Toggle(t *testing.T) {
	g := New(Config{})
	if g.EmergencyStop() {
		t.Fatal("expected emergency stop to default to false")
	}
	g.SetEmergencyStop(true)
	if !g.EmergencyStop() {
		t.Fatal("expected emergency stop to be active after SetEmergencyStop(true)")
	}
}
