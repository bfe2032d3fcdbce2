// Package parser implements the stateful rule evaluators (C3): pure
// functions of (event, parser-local state) -> optional signal, with each
// parser owning the only mutation site for its own state.
package parser

import "github.com/polytrigger/polytrigger/internal/event"

// Rule is the shared contract both parser kinds implement. Per REDESIGN
// FLAGS §9 this is a capability interface with two concrete
// implementers, not a subclass hierarchy.
type Rule interface {
	// Evaluate applies ev to the parser's state and returns a signal if
	// a rule fired. Never blocks on I/O, never panics on malformed
	// input — any unexpected condition yields (TradeSignal{}, false).
	Evaluate(ev event.MarketEvent) (event.TradeSignal, bool)
	// Reset clears all cooldown/last-observation state.
	Reset()
}
