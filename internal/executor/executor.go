package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/polytrigger/polytrigger/internal/errs"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/risk"
)

// Config bounds the executor's price-derivation and sanity checks.
type Config struct {
	DryRun bool

	BuyCrossMultiplier  float64 // applied to best ask on BUY
	SellCrossMultiplier float64 // applied to best bid on SELL

	MaxSpreadPercent float64
	MinValidPrice    float64
	MaxValidPrice    float64
}

// DefaultConfig returns the values the original gauntlet uses.
func DefaultConfig() Config {
	return Config{
		BuyCrossMultiplier:  1.01,
		SellCrossMultiplier: 0.99,
		MaxSpreadPercent:    0.50,
		MinValidPrice:       0.01,
		MaxValidPrice:       0.99,
	}
}

// Executor runs the seven-step pre-trade gauntlet: position-size guard,
// dry-run short-circuit, rate-limit throttle, aggressive-price
// derivation, price sanity, quantity derivation, and FOK submission with
// response normalization. Grounded on original_source's
// PolymarketExecutor.execute/_execute_live.
type Executor struct {
	venue    VenueClient
	book     BookSource
	gauntlet *risk.Gauntlet
	cfg      Config
	log      zerolog.Logger

	now func() time.Time
}

// New constructs an Executor.
func New(venue VenueClient, book BookSource, gauntlet *risk.Gauntlet, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{venue: venue, book: book, gauntlet: gauntlet, cfg: cfg, log: log, now: time.Now}
}

// Execute turns sig into a submitted order and normalized result, or a
// typed *errs.Error describing why it could not be submitted.
func (e *Executor) Execute(ctx context.Context, sig event.TradeSignal) (event.ExecutionResult, error) {
	const op = "executor.Execute"

	// Step 1: position-size guard. Applies in dry-run too.
	if e.gauntlet != nil && !e.gauntlet.CheckPositionSize(sig.SizeUSDC) {
		return event.ExecutionResult{}, errs.New(errs.KindPositionSize, op,
			fmt.Errorf("size_usdc %.2f exceeds maximum position size", sig.SizeUSDC))
	}
	if e.gauntlet != nil && e.gauntlet.EmergencyStop() {
		return event.ExecutionResult{}, errs.New(errs.KindExecution, op, fmt.Errorf("emergency stop is active"))
	}

	// Step 2: dry-run short-circuit.
	if e.cfg.DryRun {
		return e.dryRunResult(sig), nil
	}

	// Step 3: rate-limit spacing.
	if e.gauntlet != nil {
		e.gauntlet.Throttle()
	}

	select {
	case <-ctx.Done():
		return event.ExecutionResult{}, errs.New(errs.KindExecution, op, ctx.Err())
	default:
	}

	// Step 4: aggressive-price derivation from the cached book.
	price, err := e.derivePrice(sig)
	if err != nil {
		return event.ExecutionResult{}, err
	}

	// Step 5: price sanity.
	if price <= 0 || price < e.cfg.MinValidPrice || price > e.cfg.MaxValidPrice {
		return event.ExecutionResult{}, errs.New(errs.KindPriceValidation, op,
			fmt.Errorf("derived price %.4f outside [%.2f, %.2f]", price, e.cfg.MinValidPrice, e.cfg.MaxValidPrice))
	}

	// Step 6: quantity derivation.
	size := sig.SizeUSDC / price

	// Step 7: FOK submission and response normalization.
	resp, err := e.venue.SubmitFOK(ctx, sig.Token, string(sig.Side), price, size)
	if err != nil {
		return event.ExecutionResult{}, errs.New(errs.KindExecution, op, err)
	}
	return parseOrderResponse(resp, price, size, e.now()), nil
}

func (e *Executor) dryRunResult(sig event.TradeSignal) event.ExecutionResult {
	const dryRunPrice = 0.50
	return event.ExecutionResult{
		OrderID:     event.NewDryRunOrderID(),
		Status:      event.StatusFilled,
		FilledPrice: dryRunPrice,
		FilledSize:  sig.SizeUSDC / dryRunPrice,
		FeesPaid:    0.0,
		ExecutedAt:  e.now(),
	}
}

func (e *Executor) derivePrice(sig event.TradeSignal) (float64, error) {
	const op = "executor.derivePrice"
	bid, ask, err := e.book.BestBidAsk(sig.Token)
	if err != nil {
		return 0, errs.New(errs.KindOrderBook, op, err)
	}

	switch sig.Side {
	case event.SideBuy:
		if ask <= 0 {
			return 0, errs.New(errs.KindOrderBook, op, fmt.Errorf("empty ask side for %s", sig.Token))
		}
		price := ask * e.cfg.BuyCrossMultiplier
		if price > e.cfg.MaxValidPrice {
			price = e.cfg.MaxValidPrice
		}
		if bid > 0 {
			if err := e.validateSpread(bid, ask, op); err != nil {
				return 0, err
			}
		}
		return price, nil
	case event.SideSell:
		if bid <= 0 {
			return 0, errs.New(errs.KindOrderBook, op, fmt.Errorf("empty bid side for %s", sig.Token))
		}
		price := bid * e.cfg.SellCrossMultiplier
		if price < e.cfg.MinValidPrice {
			price = e.cfg.MinValidPrice
		}
		if ask > 0 {
			if err := e.validateSpread(bid, ask, op); err != nil {
				return 0, err
			}
		}
		return price, nil
	default:
		return 0, errs.New(errs.KindValidation, op, fmt.Errorf("unknown side %q", sig.Side))
	}
}

func (e *Executor) validateSpread(bid, ask float64, op string) error {
	if ask <= 0 || bid <= 0 {
		return nil
	}
	spread := (ask - bid) / ask
	if spread > e.cfg.MaxSpreadPercent {
		return errs.New(errs.KindPriceValidation, op,
			fmt.Errorf("spread %.4f exceeds maximum %.2f", spread, e.cfg.MaxSpreadPercent))
	}
	return nil
}

// Balance returns the account's free USDC balance. In dry-run mode it
// returns the fixed mock balance the original gauntlet uses so strategy
// code can be exercised without live credentials.
func (e *Executor) Balance(ctx context.Context) (float64, error) {
	const op = "executor.Balance"
	if e.cfg.DryRun {
		return 10000.0, nil
	}
	if e.gauntlet != nil {
		e.gauntlet.Throttle()
	}
	bal, err := e.venue.Balance(ctx)
	if err != nil {
		return 0, errs.New(errs.KindAuthentication, op, err)
	}
	return bal, nil
}

// statusMap normalizes a vendor status string to an ExecutionStatus.
// Unrecognized strings map to pending, matching the original gauntlet's
// default.
var statusMap = map[string]event.ExecutionStatus{
	"FILLED":    event.StatusFilled,
	"MATCHED":   event.StatusFilled,
	"PARTIAL":   event.StatusPartial,
	"CANCELLED": event.StatusCancelled,
	"REJECTED":  event.StatusRejected,
	"FAILED":    event.StatusFailed,
}

func parseOrderStatus(raw string) event.ExecutionStatus {
	if s, ok := statusMap[strings.ToUpper(raw)]; ok {
		return s
	}
	return event.StatusPending
}

// parseOrderResponse tolerates a venue response missing or malformed
// numeric fields, falling back to the expected price/size the gauntlet
// itself computed. Grounded on original_source's
// PolymarketExecutor._parse_order_response.
func parseOrderResponse(resp clobtypes.OrderResponse, expectedPrice, expectedSize float64, at time.Time) event.ExecutionResult {
	orderID := resp.ID
	if orderID == "" {
		orderID = "unknown_" + event.NewDryRunOrderID()[len("dry_run_"):]
	}

	status := parseOrderStatus(resp.Status)

	filledPrice := safeParsePrice(resp.Price)
	if filledPrice <= 0 {
		filledPrice = expectedPrice
	}

	var filledSize float64
	if status == event.StatusFilled || status == event.StatusPartial {
		filledSize = safeParsePrice(resp.SizeMatched)
		if filledSize <= 0 {
			if status == event.StatusFilled {
				filledSize = expectedSize
			}
		}
	}

	result := event.ExecutionResult{
		OrderID:     orderID,
		Status:      status,
		FilledPrice: filledPrice,
		FilledSize:  filledSize,
		FeesPaid:    0.0,
		ExecutedAt:  at,
	}
	switch status {
	case event.StatusRejected, event.StatusFailed, event.StatusCancelled:
		result.ErrorMessage = fmt.Sprintf("order %s: %s", orderID, status)
	}
	return result
}

func safeParsePrice(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
