package ingest

import (
	"context"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

// InjectSource is a manual test/operator hook: events handed to Inject
// are forwarded to the shared queue as though a real feed produced them.
// Grounded on original_source's inject_event, used for social/news
// signals that have no automated feed (operator-curated Twitter/Discord
// relay, manual market commentary, etc).
type InjectSource struct {
	ch chan event.MarketEvent
}

// NewInjectSource constructs an InjectSource with a small internal
// buffer so Inject never blocks the caller under normal operation.
func NewInjectSource() *InjectSource {
	return &InjectSource{ch: make(chan event.MarketEvent, 64)}
}

// Inject enqueues ev for delivery by Run. Blocks if the internal buffer
// is full.
func (s *InjectSource) Inject(ev event.MarketEvent) {
	if ev.IngestedAt.IsZero() {
		ev.IngestedAt = time.Now()
	}
	s.ch <- ev
}

// Run implements Source.
func (s *InjectSource) Run(ctx context.Context, out chan<- event.MarketEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.ch:
			out <- ev
		}
	}
}
