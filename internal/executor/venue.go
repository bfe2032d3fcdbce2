// Package executor implements C5: the pre-trade gauntlet that turns a
// TradeSignal into a submitted FOK order and a normalized ExecutionResult.
package executor

import (
	"context"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
)

// BookSource is the capability the executor needs from the cached CLOB
// orderbook snapshot: top-of-book bid/ask for a token. feed.BookSnapshot
// (already fed by the CLOB ingest stream) satisfies this directly, so the
// executor reads the same book data the ingest pipeline already maintains
// instead of issuing a second REST round-trip per order.
type BookSource interface {
	BestBidAsk(token string) (bid, ask float64, err error)
}

// VenueClient is the executor's adapter onto the trading venue. This
// boundary is opaque (an FOK submission and a balance read; book data
// comes from BookSource), so it is kept as a small capability interface rather than
// bound to the concrete SDK client type: a live implementation wraps
// clob.Client + clob.NewOrderBuilder; tests supply a fake.
type VenueClient interface {
	// SubmitFOK builds, signs, and submits a fill-or-kill order for
	// size (in the underlying token, not USDC) at price, returning the
	// venue's raw order response for normalization by the caller.
	SubmitFOK(ctx context.Context, token string, side string, price, size float64) (clobtypes.OrderResponse, error)

	// Balance returns the account's free USDC balance. The live adapter
	// in cmd/polytrigger returns the configured starting balance rather
	// than querying the venue.
	Balance(ctx context.Context) (float64, error)
}
