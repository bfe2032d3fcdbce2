package parser

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

type ruleKey struct {
	token     string
	threshold float64
}

// ThresholdParser is the price-threshold rule engine (C3). State is a
// map of rules by token, a last-trigger-time map keyed by (token,
// threshold) for cooldown enforcement, and a last-observed-price map
// for edge-triggered crossing detection.
type ThresholdParser struct {
	mu sync.Mutex

	rulesByToken map[string][]event.ThresholdRule
	lastTrigger  map[ruleKey]time.Time
	lastPrice    map[string]float64
	hasPrice     map[string]bool

	defaultCooldown time.Duration
	now             func() time.Time
}

// NewThresholdParser builds a ThresholdParser seeded with the given
// rules, installed in the order supplied — rule-install order is the
// tie-break when multiple rules for the same token would fire on the
// same event.
func NewThresholdParser(rules []event.ThresholdRule, defaultCooldown time.Duration) *ThresholdParser {
	p := &ThresholdParser{
		rulesByToken:    make(map[string][]event.ThresholdRule),
		lastTrigger:     make(map[ruleKey]time.Time),
		lastPrice:       make(map[string]float64),
		hasPrice:        make(map[string]bool),
		defaultCooldown: defaultCooldown,
		now:             time.Now,
	}
	for _, r := range rules {
		p.addRuleLocked(r)
	}
	return p
}

// AddRule installs a new rule at runtime; safe to call from the
// discovery/subscription manager. The new rule takes effect from the
// next evaluation.
func (p *ThresholdParser) AddRule(r event.ThresholdRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addRuleLocked(r)
}

func (p *ThresholdParser) addRuleLocked(r event.ThresholdRule) {
	p.rulesByToken[r.Token] = append(p.rulesByToken[r.Token], r)
}

// HasRuleForToken reports whether any rule is already bound to token,
// used by the subscription manager's dedup check.
func (p *ThresholdParser) HasRuleForToken(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rulesByToken[token]) > 0
}

func extractPrice(ev event.MarketEvent) (float64, bool) {
	if ev.BestBid != nil && ev.BestAsk != nil {
		return (*ev.BestBid + *ev.BestAsk) / 2, true
	}
	if ev.LastPrice != nil {
		return *ev.LastPrice, true
	}
	if ev.BestAsk != nil {
		return *ev.BestAsk, true
	}
	if ev.BestBid != nil {
		return *ev.BestBid, true
	}
	return 0, false
}

// Evaluate implements Rule. It is a pure function of (event, parser
// state): it never blocks and never panics on malformed input.
func (p *ThresholdParser) Evaluate(ev event.MarketEvent) (event.TradeSignal, bool) {
	switch ev.Kind {
	case event.KindBookUpdate, event.KindPriceChange, event.KindLastTrade, event.KindTickSizeChange:
	default:
		return event.TradeSignal{}, false
	}
	if ev.Token == "" {
		return event.TradeSignal{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rules := p.rulesByToken[ev.Token]
	if len(rules) == 0 {
		return event.TradeSignal{}, false
	}

	price, ok := extractPrice(ev)
	if !ok {
		return event.TradeSignal{}, false
	}

	prevPrice, hadPrev := p.lastPrice[ev.Token], p.hasPrice[ev.Token]
	p.lastPrice[ev.Token] = price
	p.hasPrice[ev.Token] = true

	for _, r := range rules {
		if sig, fired := p.evaluateRule(r, price, prevPrice, hadPrev); fired {
			return sig, true
		}
	}
	return event.TradeSignal{}, false
}

func (p *ThresholdParser) evaluateRule(r event.ThresholdRule, price, prevPrice float64, hadPrev bool) (event.TradeSignal, bool) {
	key := ruleKey{token: r.Token, threshold: r.Threshold}

	crossed := false
	switch r.Comparison {
	case event.ComparisonAbove:
		if hadPrev {
			crossed = prevPrice <= r.Threshold && price > r.Threshold
		} else {
			crossed = price > r.Threshold
		}
	case event.ComparisonBelow:
		if hadPrev {
			crossed = prevPrice >= r.Threshold && price < r.Threshold
		} else {
			crossed = price < r.Threshold
		}
	default:
		return event.TradeSignal{}, false
	}
	if !crossed {
		return event.TradeSignal{}, false
	}

	var cooldownDur time.Duration
	if r.CooldownSeconds != nil {
		cooldownDur = time.Duration(*r.CooldownSeconds * float64(time.Second))
	} else {
		cooldownDur = p.defaultCooldown
	}

	last, seen := p.lastTrigger[key]
	now := p.now()
	// The crossing is consumed regardless of cooldown: lastPrice above
	// was already advanced, so a suppressed crossing cannot re-fire on
	// the next tick merely by comparing against the same stale price.
	if seen && now.Sub(last) < cooldownDur {
		return event.TradeSignal{}, false
	}

	p.lastTrigger[key] = now

	reason := renderReason(r.ReasonTemplate, r.Comparison, r.Threshold, price, r.Token)
	return event.TradeSignal{
		Token:       r.Token,
		Side:        r.TriggerSide,
		SizeUSDC:    r.SizeUSDC,
		Reason:      reason,
		GeneratedAt: now,
	}, true
}

func renderReason(tmpl string, comparison event.Comparison, threshold, current float64, token string) string {
	r := strings.NewReplacer(
		"{comparison}", string(comparison),
		"{threshold}", fmt.Sprintf("%.4f", threshold),
		"{current_price}", fmt.Sprintf("%.4f", current),
		"{token}", token,
	)
	return r.Replace(tmpl)
}

// Reset clears all cooldown and last-observation state.
func (p *ThresholdParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTrigger = make(map[ruleKey]time.Time)
	p.lastPrice = make(map[string]float64)
	p.hasPrice = make(map[string]bool)
}

var _ Rule = (*ThresholdParser)(nil)
