package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/polytrigger/polytrigger/internal/config"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/executor"
	"github.com/polytrigger/polytrigger/internal/ingest"
	"github.com/polytrigger/polytrigger/internal/notify"
	"github.com/polytrigger/polytrigger/internal/parser"
	"github.com/polytrigger/polytrigger/internal/portfolio"
	"github.com/polytrigger/polytrigger/internal/store"
)

// fixedRule fires a BUY signal the first time it sees the configured
// token, then never again — enough to exercise one full dispatch.
type fixedRule struct {
	token string
	fired bool
}

func (r *fixedRule) Evaluate(ev event.MarketEvent) (event.TradeSignal, bool) {
	if r.fired || ev.Token != r.token {
		return event.TradeSignal{}, false
	}
	r.fired = true
	return event.TradeSignal{
		Token:       ev.Token,
		Side:        event.SideBuy,
		SizeUSDC:    50,
		Reason:      "test rule fired",
		GeneratedAt: time.Now(),
	}, true
}

func (r *fixedRule) Reset() { r.fired = false }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestOrchestrator(t *testing.T, rule *fixedRule) (*Orchestrator, *ingest.InjectSource) {
	t.Helper()
	st := newTestStore(t)
	pf := portfolio.NewManager(st, 10)

	exec := executor.New(nil, nil, nil, executor.Config{DryRun: true}, zerolog.Nop())
	if err := pf.Load(context.Background(), exec); err != nil {
		t.Fatalf("load portfolio: %v", err)
	}

	journal := store.NewJournal(t.TempDir(), zerolog.Nop())
	notifier := notify.NewNotifier("", "")

	src := ingest.NewInjectSource()

	cfg := config.Default()
	cfg.Ingest.QueueCapacity = 16

	o := New(cfg, []ingest.Source{src}, []parser.Rule{rule}, exec, pf, st, journal, notifier, nil, nil, zerolog.Nop())
	return o, src
}

func TestOrchestrator_DispatchesSignalAndUpdatesPortfolio(t *testing.T) {
	rule := &fixedRule{token: "tok-a"}
	o, src := newTestOrchestrator(t, rule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	src.Inject(event.MarketEvent{
		Kind:  event.KindBookUpdate,
		Token: "tok-a",
	})

	deadline := time.After(2 * time.Second)
	for {
		if _, held := o.portfolio.Position("tok-a"); held {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for position to be opened")
		case <-time.After(10 * time.Millisecond):
		}
	}

	pos, _ := o.portfolio.Position("tok-a")
	if pos.Quantity <= 0 {
		t.Fatalf("expected a positive filled quantity, got %+v", pos)
	}

	trades, err := o.store.RecentTrades(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 persisted trade, got %d", len(trades))
	}
	if trades[0].Token != "tok-a" {
		t.Fatalf("unexpected trade token: %+v", trades[0])
	}
}

func TestOrchestrator_RejectsSignalBeyondCashBalance(t *testing.T) {
	rule := &fixedRule{token: "tok-b"}
	o, src := newTestOrchestrator(t, rule)
	o.portfolio.Load(context.Background(), fixedBalance{0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	src.Inject(event.MarketEvent{Kind: event.KindBookUpdate, Token: "tok-b"})

	time.Sleep(50 * time.Millisecond)
	if _, held := o.portfolio.Position("tok-b"); held {
		t.Fatal("expected signal to be rejected pre-trade, but a position was opened")
	}
}

type fixedBalance struct{ balance float64 }

func (f fixedBalance) Balance(ctx context.Context) (float64, error) { return f.balance, nil }

// S — a price-change event carrying LastPrice for a token already held marks
// the position to market, independent of rule evaluation.
func TestOrchestrator_ForwardsLastPriceToPortfolio(t *testing.T) {
	rule := &fixedRule{token: "tok-c"}
	o, src := newTestOrchestrator(t, rule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	src.Inject(event.MarketEvent{Kind: event.KindBookUpdate, Token: "tok-c"})

	deadline := time.After(2 * time.Second)
	for {
		if _, held := o.portfolio.Position("tok-c"); held {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for position to be opened")
		case <-time.After(10 * time.Millisecond):
		}
	}

	price := 0.73
	src.Inject(event.MarketEvent{Kind: event.KindPriceChange, Token: "tok-c", LastPrice: &price})

	deadline = time.After(2 * time.Second)
	for {
		pos, _ := o.portfolio.Position("tok-c")
		if pos.CurrentPrice == price {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for mark-to-market, last seen %+v", pos)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
