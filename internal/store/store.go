// Package store implements the embedded transactional position/order
// store (C7). No SQL driver is attested anywhere in the retrieved
// example pack, so the three relations (trades, positions, orders) are
// each modeled as a bbolt bucket, with secondary indexes as companion
// buckets updated inside the same transaction as the primary write.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTrades         = []byte("trades")
	bucketTradesByToken  = []byte("trades_by_token")
	bucketTradesByDate   = []byte("trades_by_executed_at")
	bucketPositions      = []byte("positions")
	bucketOrders         = []byte("orders")
	bucketOrdersByToken  = []byte("orders_by_token")
	bucketOrdersByStatus = []byte("orders_by_status")
)

// Trade is the persisted shape of one fill record. Quantity/Price/Fees
// are stored as decimal.Decimal — float64 is fine for the hot-path mid
// extraction in the parser, but a value that is read back and summed
// for reporting should not carry binary-float rounding error.
type Trade struct {
	ID            uint64          `json:"id"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Token         string          `json:"token"`
	Side          event.Side      `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Fees          decimal.Decimal `json:"fees"`
	ExecutedAt    int64           `json:"executed_at"`
	CreatedAt     int64           `json:"created_at"`
}

// orderRecord is the persisted shape of one order's lifecycle state.
type orderRecord struct {
	ClientOrderID   string                `json:"client_order_id"`
	Token           string                `json:"token"`
	Side            event.Side            `json:"side"`
	Quantity        decimal.Decimal       `json:"quantity"`
	OrderType       event.OrderType       `json:"order_type"`
	LimitPrice      *decimal.Decimal      `json:"limit_price,omitempty"`
	TimeInForce     event.TimeInForce     `json:"time_in_force"`
	Status          event.ExecutionStatus `json:"status"`
	ExchangeOrderID string                `json:"exchange_order_id"`
	Reason          string                `json:"reason"`
	CreatedAt       int64                 `json:"created_at"`
	UpdatedAt       int64                 `json:"updated_at"`
}

// positionRecord is the persisted shape of one Position row.
type positionRecord struct {
	Token         string          `json:"token"`
	Side          event.PositionSide `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	OpenedAt      int64           `json:"opened_at"`
}

// Store is the bbolt-backed implementation of C7's position/order
// store. It opens its connection idempotently, creates missing buckets
// on open, and serializes concurrent writers via bbolt's own single-
// writer transaction model.
type Store struct {
	db  *bolt.DB
	log zerolog.Logger
}

// Open opens (creating if absent) the store at path and ensures every
// bucket exists.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketTrades, bucketTradesByToken, bucketTradesByDate,
			bucketPositions,
			bucketOrders, bucketOrdersByToken, bucketOrdersByStatus,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("store opened")
	log.Warn().Msg("in-flight order recovery after a crash is not implemented; orders submitted immediately before a crash must be reconciled against the venue manually")

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func indexKey(indexValue string, primaryKey []byte) []byte {
	return append([]byte(indexValue+"\x00"), primaryKey...)
}

// InsertTrade appends a trade record keyed by an autoincrementing id,
// and updates the token and executed_at secondary indexes in the same
// transaction.
func (s *Store) InsertTrade(ctx context.Context, orderID, clientOrderID string, order event.Order, result event.ExecutionResult) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrades)
		id, _ := b.NextSequence()

		qty := result.FilledSize
		if qty <= 0 {
			qty = order.Quantity
		}
		rec := Trade{
			ID:            id,
			OrderID:       orderID,
			ClientOrderID: clientOrderID,
			Token:         order.Token,
			Side:          order.Side,
			Quantity:      decimal.NewFromFloat(qty),
			Price:         decimal.NewFromFloat(result.FilledPrice),
			Fees:          decimal.NewFromFloat(result.FeesPaid),
			ExecutedAt:    result.ExecutedAt.Unix(),
			CreatedAt:     order.CreatedAt.Unix(),
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		key := itob(id)
		if err := b.Put(key, data); err != nil {
			return err
		}

		if err := tx.Bucket(bucketTradesByToken).Put(indexKey(order.Token, key), key); err != nil {
			return err
		}
		dateKey := fmt.Sprintf("%020d", result.ExecutedAt.Unix())
		return tx.Bucket(bucketTradesByDate).Put(indexKey(dateKey, key), key)
	})
}

// UpsertPosition writes or replaces a position, keyed by token.
func (s *Store) UpsertPosition(ctx context.Context, p event.Position) error {
	rec := positionRecord{
		Token:         p.Token,
		Side:          p.Side,
		Quantity:      decimal.NewFromFloat(p.Quantity),
		AvgEntryPrice: decimal.NewFromFloat(p.AvgEntryPrice),
		CurrentPrice:  decimal.NewFromFloat(p.CurrentPrice),
		OpenedAt:      p.OpenedAt.Unix(),
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPositions).Put([]byte(p.Token), data)
	})
}

// DeletePosition removes a position when it closes.
func (s *Store) DeletePosition(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).Delete([]byte(token))
	})
}

// GetAllPositions returns every stored position.
func (s *Store) GetAllPositions(ctx context.Context) ([]event.Position, error) {
	var out []event.Position
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).ForEach(func(k, v []byte) error {
			var rec positionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			qty, _ := rec.Quantity.Float64()
			avg, _ := rec.AvgEntryPrice.Float64()
			cur, _ := rec.CurrentPrice.Float64()
			out = append(out, event.Position{
				Token:         rec.Token,
				Side:          rec.Side,
				Quantity:      qty,
				AvgEntryPrice: avg,
				CurrentPrice:  cur,
				OpenedAt:      time.Unix(rec.OpenedAt, 0).UTC(),
			})
			return nil
		})
	})
	return out, err
}

// InsertOrder upserts the order's lifecycle record, indexed by token
// and status.
func (s *Store) InsertOrder(ctx context.Context, order event.Order, status event.ExecutionStatus, exchangeOrderID string, updatedAt int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var limitPrice *decimal.Decimal
		if order.LimitPrice != nil {
			d := decimal.NewFromFloat(*order.LimitPrice)
			limitPrice = &d
		}
		rec := orderRecord{
			ClientOrderID:   order.ClientOrderID,
			Token:           order.Token,
			Side:            order.Side,
			Quantity:        decimal.NewFromFloat(order.Quantity),
			OrderType:       order.OrderType,
			LimitPrice:      limitPrice,
			TimeInForce:     order.TimeInForce,
			Status:          status,
			ExchangeOrderID: exchangeOrderID,
			Reason:          order.Reason,
			CreatedAt:       order.CreatedAt.Unix(),
			UpdatedAt:       updatedAt,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		key := []byte(order.ClientOrderID)
		if err := tx.Bucket(bucketOrders).Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketOrdersByToken).Put(indexKey(order.Token, key), key); err != nil {
			return err
		}
		return tx.Bucket(bucketOrdersByStatus).Put(indexKey(string(status), key), key)
	})
}

// TradesByToken returns every trade recorded for token, oldest first.
func (s *Store) TradesByToken(ctx context.Context, token string) ([]Trade, error) {
	var out []Trade
	prefix := []byte(token + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketTradesByToken)
		trades := tx.Bucket(bucketTrades)
		c := idx.Cursor()
		for k, primary := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, primary = c.Next() {
			data := trades.Get(primary)
			if data == nil {
				continue
			}
			var t Trade
			if err := json.Unmarshal(data, &t); err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// RecentTrades returns up to limit trades across all tokens, most
// recently executed first. limit<=0 returns every trade.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	var out []Trade
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketTradesByDate)
		trades := tx.Bucket(bucketTrades)
		c := idx.Cursor()
		for k, primary := c.Last(); k != nil; k, primary = c.Prev() {
			data := trades.Get(primary)
			if data == nil {
				continue
			}
			var t Trade
			if err := json.Unmarshal(data, &t); err != nil {
				return err
			}
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
