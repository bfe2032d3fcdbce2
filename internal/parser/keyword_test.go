package parser

import (
	"testing"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

// S3 — keyword news-to-trade.
func TestKeywordParser_MatchEmitsSignal(t *testing.T) {
	rule := event.KeywordRule{Keyword: "FED HIKE", Token: "U", TriggerSide: event.SideBuy, SizeUSDC: 100, ReasonTemplate: "keyword {keyword}"}
	p := NewKeywordParser([]event.KeywordRule{rule}, 60*time.Second)

	sig, ok := p.Evaluate(event.MarketEvent{Kind: event.KindNews, Content: "Breaking: FED HIKE of 25bp"})
	if !ok {
		t.Fatal("expected signal")
	}
	if sig.Token != "U" || sig.Side != event.SideBuy {
		t.Fatalf("unexpected signal: %+v", sig)
	}

	if _, ok := p.Evaluate(event.MarketEvent{Kind: event.KindNews, Content: "Weather sunny"}); ok {
		t.Fatal("no keyword match should not emit a signal")
	}
}

func TestKeywordParser_CaseInsensitiveByDefault(t *testing.T) {
	rule := event.KeywordRule{Keyword: "hike", Token: "U", TriggerSide: event.SideBuy, SizeUSDC: 1, ReasonTemplate: "x"}
	p := NewKeywordParser([]event.KeywordRule{rule}, 0)
	if _, ok := p.Evaluate(event.MarketEvent{Kind: event.KindSocial, Content: "HIKE incoming"}); !ok {
		t.Fatal("expected case-insensitive match")
	}
}

// An explicit CooldownSeconds of 0 means no cooldown, not "use the
// parser's default."
func TestKeywordParser_ExplicitZeroCooldownMeansNoCooldown(t *testing.T) {
	noCooldown := 0.0
	rule := event.KeywordRule{Keyword: "hike", Token: "U", TriggerSide: event.SideBuy, SizeUSDC: 1, ReasonTemplate: "x", CooldownSeconds: &noCooldown}
	p := NewKeywordParser([]event.KeywordRule{rule}, 60*time.Second)

	fixedNow := time.Now()
	p.now = func() time.Time { return fixedNow }

	if _, ok := p.Evaluate(event.MarketEvent{Kind: event.KindNews, Content: "hike"}); !ok {
		t.Fatal("expected first match to fire")
	}
	if _, ok := p.Evaluate(event.MarketEvent{Kind: event.KindNews, Content: "hike"}); !ok {
		t.Fatal("expected a zero cooldown to never suppress a re-fire")
	}
}

func TestKeywordParser_IgnoresNonExternalEvents(t *testing.T) {
	rule := event.KeywordRule{Keyword: "hike", Token: "U", SizeUSDC: 1, ReasonTemplate: "x"}
	p := NewKeywordParser([]event.KeywordRule{rule}, 0)
	price := 0.5
	if _, ok := p.Evaluate(event.MarketEvent{Kind: event.KindPriceChange, Token: "U", LastPrice: &price}); ok {
		t.Fatal("price events must never match keyword rules")
	}
}
