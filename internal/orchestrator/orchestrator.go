// Package orchestrator wires C2 ingest sources through C3 rule
// evaluation, C5 execution, C6 portfolio accounting, and C7 persistence
// into one running process. Grounded on internal/app/app.go's
// New/Run/Shutdown shape and its select-loop/ticker idiom, adapted from
// a maker/taker dispatch loop to a single-queue signal pipeline.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polytrigger/polytrigger/internal/config"
	"github.com/polytrigger/polytrigger/internal/discovery"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/executor"
	"github.com/polytrigger/polytrigger/internal/ingest"
	"github.com/polytrigger/polytrigger/internal/notify"
	"github.com/polytrigger/polytrigger/internal/parser"
	"github.com/polytrigger/polytrigger/internal/portfolio"
	"github.com/polytrigger/polytrigger/internal/store"
)

// Orchestrator is the central wiring point: independent ingest sources
// feed one shared queue, every queued MarketEvent is offered to each
// rule in order, and the first TradeSignal a rule fires is run through
// the pre-trade gauntlet, execution, fill accounting, and persistence.
type Orchestrator struct {
	cfg config.Config
	log zerolog.Logger

	sources []ingest.Source
	queue   chan event.MarketEvent
	rules   []parser.Rule

	executor  *executor.Executor
	portfolio *portfolio.Manager
	store     *store.Store
	journal   *store.Journal
	notifier  *notify.Notifier

	discoveryMgr *discovery.Manager
	strategies   []event.DiscoveryStrategy

	mu          sync.Mutex
	tradesToday int
	volumeToday float64
}

// New constructs an Orchestrator. discoveryMgr may be nil if no
// discovery strategies are configured.
func New(
	cfg config.Config,
	sources []ingest.Source,
	rules []parser.Rule,
	exec *executor.Executor,
	pf *portfolio.Manager,
	st *store.Store,
	journal *store.Journal,
	notifier *notify.Notifier,
	discoveryMgr *discovery.Manager,
	strategies []event.DiscoveryStrategy,
	log zerolog.Logger,
) *Orchestrator {
	capacity := cfg.Ingest.QueueCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	return &Orchestrator{
		cfg:          cfg,
		log:          log,
		sources:      sources,
		queue:        make(chan event.MarketEvent, capacity),
		rules:        rules,
		executor:     exec,
		portfolio:    pf,
		store:        st,
		journal:      journal,
		notifier:     notifier,
		discoveryMgr: discoveryMgr,
		strategies:   strategies,
	}
}

// Run starts every ingest source in its own goroutine and drains the
// shared queue until ctx is cancelled. It blocks.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, src := range o.sources {
		src := src
		go func() {
			if err := src.Run(ctx, o.queue); err != nil && err != context.Canceled {
				o.log.Error().Err(err).Msg("orchestrator: ingest source stopped")
			}
		}()
	}

	if o.discoveryMgr != nil && len(o.strategies) > 0 {
		added := o.discoveryMgr.ExecuteStrategies(ctx, o.strategies)
		o.log.Info().Int("added", added).Msg("orchestrator: initial discovery run complete")
	}

	var rescanCh <-chan time.Time
	var rescanTicker *time.Ticker
	if o.discoveryMgr != nil && o.cfg.Discovery.RescanInterval > 0 {
		rescanTicker = time.NewTicker(o.cfg.Discovery.RescanInterval)
		rescanCh = rescanTicker.C
		defer rescanTicker.Stop()
	}

	dailyResetTimer := time.NewTimer(timeUntilMidnightUTC())
	defer dailyResetTimer.Stop()

	o.log.Info().Msg("orchestrator: pipeline started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-o.queue:
			o.handleEvent(ctx, ev)

		case <-rescanCh:
			added := o.discoveryMgr.ExecuteStrategies(ctx, o.strategies)
			o.log.Info().Int("added", added).Msg("orchestrator: periodic discovery rescan complete")

		case <-dailyResetTimer.C:
			o.resetDaily(ctx)
			dailyResetTimer.Reset(timeUntilMidnightUTC())
		}
	}
}

// handleEvent offers ev to every rule in order, first-match-wins, and
// dispatches the resulting TradeSignal if one fires.
func (o *Orchestrator) handleEvent(ctx context.Context, ev event.MarketEvent) {
	if !ev.Valid() {
		return
	}
	if ev.Token != "" && ev.LastPrice != nil && o.portfolio != nil {
		o.portfolio.OnPriceUpdate(ev.Token, *ev.LastPrice)
	}
	for _, rule := range o.rules {
		sig, fired := rule.Evaluate(ev)
		if !fired {
			continue
		}
		o.handleSignal(ctx, sig)
		return
	}
}

// handleSignal runs a conservative cash/position-count check, executes
// the signal, and threads the outcome through portfolio accounting,
// persistence, and notification. A provisional order with no LimitPrice
// makes CheckOrder's quantity*price cost formula default to price=1.0,
// so cost==sig.SizeUSDC — an upper bound on the true cost, since a
// token's real price never exceeds 0.99.
func (o *Orchestrator) handleSignal(ctx context.Context, sig event.TradeSignal) {
	provisional := event.Order{
		Token:    sig.Token,
		Side:     sig.Side,
		Quantity: sig.SizeUSDC,
	}
	if ok, reason := o.portfolio.CheckOrder(provisional); !ok {
		o.log.Warn().Str("token", sig.Token).Str("reason", reason).Msg("orchestrator: signal rejected pre-trade")
		if o.notifier != nil {
			_ = o.notifier.NotifyRejected(ctx, sig.Token, reason)
		}
		return
	}

	result, err := o.executor.Execute(ctx, sig)
	if err != nil {
		o.log.Warn().Err(err).Str("token", sig.Token).Msg("orchestrator: execution failed")
		if o.notifier != nil {
			_ = o.notifier.NotifyRejected(ctx, sig.Token, err.Error())
		}
		return
	}

	order := event.Order{
		ClientOrderID: event.NewClientOrderID(),
		Token:         sig.Token,
		Side:          sig.Side,
		Quantity:      result.FilledSize,
		OrderType:     event.OrderTypeFOK,
		Reason:        sig.Reason,
		CreatedAt:     sig.GeneratedAt,
	}

	if err := o.portfolio.OnFill(ctx, order, result); err != nil {
		o.log.Error().Err(err).Str("token", sig.Token).Msg("orchestrator: portfolio update failed")
	}

	if o.store != nil {
		if err := o.store.InsertOrder(ctx, order, result.Status, result.OrderID, result.ExecutedAt.Unix()); err != nil {
			o.log.Error().Err(err).Msg("orchestrator: order persistence failed")
		}
		if err := o.store.InsertTrade(ctx, result.OrderID, order.ClientOrderID, order, result); err != nil {
			o.log.Error().Err(err).Msg("orchestrator: trade persistence failed")
		}
	}
	if o.journal != nil {
		o.journal.LogExecution(order, result)
	}

	o.mu.Lock()
	o.tradesToday++
	o.volumeToday += result.FilledPrice * result.FilledSize
	o.mu.Unlock()

	if o.notifier != nil {
		_ = o.notifier.NotifyFill(ctx, sig.Token, string(sig.Side), result.FilledPrice, result.FilledSize)
	}
}

func (o *Orchestrator) resetDaily(ctx context.Context) {
	o.mu.Lock()
	trades, volume := o.tradesToday, o.volumeToday
	o.tradesToday, o.volumeToday = 0, 0
	o.mu.Unlock()

	o.log.Info().Int("trades", trades).Float64("volume_usdc", volume).Msg("orchestrator: daily reset")
	if o.notifier != nil {
		_ = o.notifier.NotifyDailySummary(ctx, trades, volume)
	}
}

// timeUntilMidnightUTC returns the duration until the next UTC midnight.
func timeUntilMidnightUTC() time.Duration {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Sub(now)
}
