// Package ingest implements C2: independent producer goroutines that each
// push MarketEvents into one shared bounded channel. Grounded on
// cmd/trader/main.go and internal/app/app.go's select-loop/reconnect idiom.
package ingest

import (
	"context"

	"github.com/polytrigger/polytrigger/internal/event"
)

// Source is satisfied by every ingest producer (CLOB stream, RSS poller,
// manual injector). Run blocks, pushing events to out, until ctx is
// cancelled or a non-recoverable error occurs; it never closes out (the
// orchestrator owns that channel's lifetime across all sources).
type Source interface {
	Run(ctx context.Context, out chan<- event.MarketEvent) error
}
