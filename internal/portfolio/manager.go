// Package portfolio implements the cash + position ledger (C6): an
// in-memory authoritative cache backed by the C7 store, pre-trade
// validation, deterministic fill application, and mark-to-market.
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

// Store is the persistence capability C6 depends on (C7). Every position
// change OnFill makes is persisted via Store in the same logical step;
// OnPriceUpdate's mark-to-market and the cash balance stay in memory.
type Store interface {
	GetAllPositions(ctx context.Context) ([]event.Position, error)
	UpsertPosition(ctx context.Context, p event.Position) error
	DeletePosition(ctx context.Context, token string) error
}

// BalanceSource supplies the authoritative external cash balance at
// load time. The executor satisfies this directly.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// Manager is the C6 portfolio state machine.
type Manager struct {
	mu sync.RWMutex

	store Store

	cashBalance  float64
	positions    map[string]event.Position
	maxPositions int

	loaded bool
	now    func() time.Time
}

// NewManager constructs a Manager. Load must be called before accepting
// any orders.
func NewManager(store Store, maxPositions int) *Manager {
	return &Manager{
		store:        store,
		positions:    make(map[string]event.Position),
		maxPositions: maxPositions,
		now:          time.Now,
	}
}

// Load is a blocking precondition of accepting orders: cash_balance is
// fetched from the authoritative external source (the executor) and
// positions are restored from the store.
func (m *Manager) Load(ctx context.Context, balances BalanceSource) error {
	balance, err := balances.Balance(ctx)
	if err != nil {
		return fmt.Errorf("load cash balance: %w", err)
	}

	positions, err := m.store.GetAllPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cashBalance = balance
	m.positions = make(map[string]event.Position, len(positions))
	for _, p := range positions {
		m.positions[p.Token] = p
	}
	m.loaded = true
	return nil
}

// CashBalance returns the current cash balance.
func (m *Manager) CashBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cashBalance
}

// Position returns a copy of the position for token, if held.
func (m *Manager) Position(token string) (event.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[token]
	return p, ok
}

// Positions returns a snapshot of all held positions.
func (m *Manager) Positions() map[string]event.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]event.Position, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

// CheckOrder validates order against cash and position constraints.
// It never mutates state.
func (m *Manager) CheckOrder(order event.Order) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch order.Side {
	case event.SideBuy:
		price := 1.0
		if order.LimitPrice != nil {
			price = *order.LimitPrice
		}
		cost := order.Quantity * price
		if cost > m.cashBalance {
			return false, fmt.Sprintf("insufficient cash: %.2f > %.2f", cost, m.cashBalance)
		}
		if _, held := m.positions[order.Token]; !held {
			if len(m.positions) >= m.maxPositions {
				return false, fmt.Sprintf("max positions reached: %d", m.maxPositions)
			}
		}
	case event.SideSell:
		pos, held := m.positions[order.Token]
		if !held || pos.Quantity < order.Quantity {
			available := 0.0
			if held {
				available = pos.Quantity
			}
			return false, fmt.Sprintf("insufficient position for sell: %v > %v", order.Quantity, available)
		}
	}
	return true, ""
}

// OnFill applies a fill deterministically: BUY uses VWAP cost-basis
// blending; SELL reduces quantity and deletes the position at or below
// zero, preserving avg_entry_price (realized PnL is not tracked in this
// core — DESIGN.md Open Question 3). Every mutation is persisted via
// Store in the same step.
func (m *Manager) OnFill(ctx context.Context, order event.Order, result event.ExecutionResult) error {
	filledSize := result.FilledSize
	if filledSize <= 0 {
		filledSize = order.Quantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch order.Side {
	case event.SideBuy:
		if err := m.handleBuyFillLocked(ctx, order.Token, filledSize, result.FilledPrice); err != nil {
			return err
		}
		m.cashBalance -= filledSize*result.FilledPrice + result.FeesPaid
	case event.SideSell:
		if err := m.handleSellFillLocked(ctx, order.Token, filledSize, result.FilledPrice); err != nil {
			return err
		}
		m.cashBalance += filledSize*result.FilledPrice - result.FeesPaid
	}
	return nil
}

func (m *Manager) handleBuyFillLocked(ctx context.Context, token string, quantity, price float64) error {
	old, held := m.positions[token]

	var pos event.Position
	if held {
		newQty := old.Quantity + quantity
		totalCost := old.Quantity*old.AvgEntryPrice + quantity*price
		pos = event.Position{
			Token:         token,
			Side:          event.PositionLong,
			Quantity:      newQty,
			AvgEntryPrice: totalCost / newQty,
			CurrentPrice:  price,
			OpenedAt:      old.OpenedAt,
		}
	} else {
		pos = event.Position{
			Token:         token,
			Side:          event.PositionLong,
			Quantity:      quantity,
			AvgEntryPrice: price,
			CurrentPrice:  price,
			OpenedAt:      m.now(),
		}
	}
	m.positions[token] = pos
	return m.store.UpsertPosition(ctx, pos)
}

func (m *Manager) handleSellFillLocked(ctx context.Context, token string, quantity, price float64) error {
	old, held := m.positions[token]
	if !held {
		return nil
	}

	newQty := old.Quantity - quantity
	if newQty <= 0 {
		delete(m.positions, token)
		return m.store.DeletePosition(ctx, token)
	}

	pos := event.Position{
		Token:         token,
		Side:          old.Side,
		Quantity:      newQty,
		AvgEntryPrice: old.AvgEntryPrice,
		CurrentPrice:  price,
		OpenedAt:      old.OpenedAt,
	}
	m.positions[token] = pos
	return m.store.UpsertPosition(ctx, pos)
}

// OnPriceUpdate replaces a held position with an identical copy carrying
// the new current price; unknown tokens are no-ops.
func (m *Manager) OnPriceUpdate(token string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, held := m.positions[token]
	if !held {
		return
	}
	old.CurrentPrice = price
	m.positions[token] = old
}
