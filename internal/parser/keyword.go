package parser

import (
	"strings"
	"sync"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

// KeywordParser matches news/social content against a substring keyword
// list, first-match-wins, cooldown-gated per keyword.
type KeywordParser struct {
	mu sync.Mutex

	rules       []event.KeywordRule
	lastTrigger map[string]time.Time

	defaultCooldown time.Duration
	now             func() time.Time
}

// NewKeywordParser builds a KeywordParser with rules in install order;
// the first rule to match content on a given event wins.
func NewKeywordParser(rules []event.KeywordRule, defaultCooldown time.Duration) *KeywordParser {
	return &KeywordParser{
		rules:           append([]event.KeywordRule(nil), rules...),
		lastTrigger:     make(map[string]time.Time),
		defaultCooldown: defaultCooldown,
		now:             time.Now,
	}
}

// AddRule installs a new keyword rule at runtime.
func (p *KeywordParser) AddRule(r event.KeywordRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, r)
}

// Evaluate implements Rule.
func (p *KeywordParser) Evaluate(ev event.MarketEvent) (event.TradeSignal, bool) {
	if ev.Kind != event.KindNews && ev.Kind != event.KindSocial {
		return event.TradeSignal{}, false
	}
	if ev.Content == "" {
		return event.TradeSignal{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.rules {
		if sig, fired := p.evaluateRule(r, ev); fired {
			return sig, true
		}
	}
	return event.TradeSignal{}, false
}

func (p *KeywordParser) evaluateRule(r event.KeywordRule, ev event.MarketEvent) (event.TradeSignal, bool) {
	cooldown := p.defaultCooldown
	if r.CooldownSeconds != nil {
		cooldown = time.Duration(*r.CooldownSeconds * float64(time.Second))
	}

	last, seen := p.lastTrigger[r.Keyword]
	now := p.now()
	if seen && now.Sub(last) < cooldown {
		return event.TradeSignal{}, false
	}

	content, keyword := ev.Content, r.Keyword
	if !r.CaseSensitive {
		content = strings.ToLower(content)
		keyword = strings.ToLower(keyword)
	}
	if !strings.Contains(content, keyword) {
		return event.TradeSignal{}, false
	}

	p.lastTrigger[r.Keyword] = now

	reason := renderKeywordReason(r.ReasonTemplate, r.Keyword, ev.Source, ev.Content)
	return event.TradeSignal{
		Token:       r.Token,
		Side:        r.TriggerSide,
		SizeUSDC:    r.SizeUSDC,
		Reason:      reason,
		GeneratedAt: now,
	}, true
}

func renderKeywordReason(tmpl, keyword, source, content string) string {
	if source == "" {
		source = "unknown"
	}
	preview := content
	if len(preview) > 50 {
		preview = preview[:50]
	}
	r := strings.NewReplacer(
		"{keyword}", keyword,
		"{source}", source,
		"{content}", preview,
	)
	return r.Replace(tmpl)
}

// Reset clears cooldown tracking.
func (p *KeywordParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTrigger = make(map[string]time.Time)
}

var _ Rule = (*KeywordParser)(nil)
