package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/ws"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/feed"
)

// OrderbookSubscriber is the capability ClobSource depends on.
// ws.Client (the authenticated client cmd/polytrigger passes in)
// satisfies it directly.
type OrderbookSubscriber interface {
	SubscribeOrderbook(ctx context.Context, assetIDs []string) (<-chan ws.OrderbookEvent, error)
}

// ClobSource streams book-update MarketEvents for a set of assets,
// reconnecting with a fixed backoff whenever the subscription channel
// closes. Grounded on internal/app/app.go's trading-loop select case
// ("book channel closed, reconnecting...").
//
// After a close, Run waits the fixed delay and resubscribes once; if
// that resubscribe fails, Run returns its error. The delay does not grow
// between closes and no attempt limit applies.
//
// The asset set is not fixed: Subscribe adds tokens at runtime (the
// discovery manager's ingest-side capability) and triggers an
// immediate resubscribe against the full updated set, rather than
// resubscribing only the newly added tokens against a connection that
// would otherwise never be told about them.
type ClobSource struct {
	client OrderbookSubscriber
	books  *feed.BookSnapshot

	reconnect time.Duration
	log       zerolog.Logger

	mu          sync.Mutex
	assetIDs    map[string]bool
	resubscribe chan struct{}
}

// NewClobSource constructs a ClobSource. books, if non-nil, is updated
// with every received snapshot so the executor's price derivation (C5)
// and other in-process readers share one cache.
func NewClobSource(client OrderbookSubscriber, assetIDs []string, books *feed.BookSnapshot, reconnect time.Duration, log zerolog.Logger) *ClobSource {
	if reconnect <= 0 {
		reconnect = 2 * time.Second
	}
	ids := make(map[string]bool, len(assetIDs))
	for _, id := range assetIDs {
		ids[id] = true
	}
	return &ClobSource{
		client:      client,
		books:       books,
		reconnect:   reconnect,
		log:         log,
		assetIDs:    ids,
		resubscribe: make(chan struct{}, 1),
	}
}

// Subscribe adds tokenIDs to the tracked asset set and requests an
// immediate resubscribe. Implements discovery.Subscriber.
func (c *ClobSource) Subscribe(_ context.Context, tokenIDs []string) error {
	c.mu.Lock()
	added := false
	for _, id := range tokenIDs {
		if !c.assetIDs[id] {
			c.assetIDs[id] = true
			added = true
		}
	}
	c.mu.Unlock()

	if added {
		select {
		case c.resubscribe <- struct{}{}:
		default:
		}
	}
	return nil
}

// SubscribedTokens reports every token currently tracked. Implements
// discovery.Subscriber.
func (c *ClobSource) SubscribedTokens() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.assetIDs))
	for id := range c.assetIDs {
		out[id] = true
	}
	return out
}

func (c *ClobSource) snapshotAssetIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.assetIDs))
	for id := range c.assetIDs {
		ids = append(ids, id)
	}
	return ids
}

// Run implements Source.
func (c *ClobSource) Run(ctx context.Context, out chan<- event.MarketEvent) error {
	bookCh, err := c.client.SubscribeOrderbook(ctx, c.snapshotAssetIDs())
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.resubscribe:
			newCh, err := c.client.SubscribeOrderbook(ctx, c.snapshotAssetIDs())
			if err != nil {
				c.log.Error().Err(err).Msg("clob ingest: resubscribe failed")
				continue
			}
			bookCh = newCh

		case ev, ok := <-bookCh:
			if !ok {
				c.log.Warn().Dur("wait", c.reconnect).Msg("clob ingest: book channel closed, reconnecting")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.reconnect):
				}
				bookCh, err = c.client.SubscribeOrderbook(ctx, c.snapshotAssetIDs())
				if err != nil {
					return err
				}
				continue
			}
			if c.books != nil {
				c.books.Update(ev)
			}
			out <- toMarketEvent(ev)
		}
	}
}

func toMarketEvent(ev ws.OrderbookEvent) event.MarketEvent {
	me := event.MarketEvent{
		Kind:       event.KindBookUpdate,
		IngestedAt: time.Now(),
		Token:      ev.AssetID,
	}
	if len(ev.Bids) > 0 {
		if v, err := strconv.ParseFloat(ev.Bids[0].Price, 64); err == nil {
			me.BestBid = &v
		}
	}
	if len(ev.Asks) > 0 {
		if v, err := strconv.ParseFloat(ev.Asks[0].Price, 64); err == nil {
			me.BestAsk = &v
		}
	}
	if raw, err := json.Marshal(ev); err == nil {
		me.RawPayload = raw
	}
	return me
}
