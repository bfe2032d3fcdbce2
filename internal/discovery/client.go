// Package discovery implements C4: querying an external market catalog
// for candidates matching a DiscoveryStrategy's criteria, and wiring
// newly found markets into the live ingest/parser pipeline.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
	"github.com/polytrigger/polytrigger/internal/errs"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/rs/zerolog"
)

// CatalogClient is the capability Client depends on for the raw market
// listing call. gamma.Client (passed in by cmd/polytrigger as
// sdkClient.Gamma) is the production implementation; tests supply a fake. An implementation
// may return an *errs.Error to classify a failure (rate limit, server
// error, bad request) so Discover can branch retry behavior on it;
// gamma.Client's own errors are not attested to carry that
// classification, so they fall through as plain errors and are retried
// with the default backoff, same as before this distinction existed.
type CatalogClient interface {
	Markets(ctx context.Context, req *gamma.MarketsRequest) ([]gamma.Market, error)
}

// Client wraps a CatalogClient with the retry, backoff, and minimum
// request spacing behavior the discovery layer requires. The attested
// Go catalog SDK does not expose a cursor/offset field the way the
// events endpoint it is modeled on does, so pagination here is bounded
// by a single Limit-sized fetch per query rather than true multi-page
// cursor traversal — see DESIGN.md's C4 entry.
type Client struct {
	catalog CatalogClient
	log     zerolog.Logger

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	minSpacing     time.Duration

	lastRequest time.Time
	sleep       func(time.Duration)
	now         func() time.Time
}

// NewClient constructs a Client.
func NewClient(catalog CatalogClient, log zerolog.Logger, maxRetries int, initialBackoff, maxBackoff, minSpacing time.Duration) *Client {
	return &Client{
		catalog:        catalog,
		log:            log,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		minSpacing:     minSpacing,
		sleep:          time.Sleep,
		now:            time.Now,
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.initialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return d
}

func (c *Client) rateLimit() {
	elapsed := c.now().Sub(c.lastRequest)
	if elapsed < c.minSpacing {
		c.sleep(c.minSpacing - elapsed)
	}
	c.lastRequest = c.now()
}

// Discover queries the catalog for markets matching criteria, applies
// client-side volume/liquidity/keyword filters, and returns up to limit
// results. A classified rate-limit or server error is retried with
// backoff (honoring the error's RetryAfter hint if one is set); a
// classified error of any other kind is a bad request that retrying
// cannot fix, so it is returned immediately without burning the
// remaining attempts. An unclassified error — including every error
// gamma.Client itself returns today — is retried with plain exponential
// backoff, exactly as before this distinction existed.
func (c *Client) Discover(ctx context.Context, criteria event.MarketCriteria, limit int) ([]gamma.Market, error) {
	req := c.buildRequest(limit)

	var lastErr error
	var markets []gamma.Market
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.rateLimit()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ms, err := c.catalog.Markets(ctx, req)
		if err == nil {
			markets = ms
			lastErr = nil
			break
		}
		lastErr = err

		var classified *errs.Error
		if errors.As(err, &classified) && classified.Kind != errs.KindRateLimit && classified.Kind != errs.KindTransientTransport {
			c.log.Warn().Err(err).Str("kind", string(classified.Kind)).Msg("discovery: non-retryable catalog error, giving up")
			break
		}

		wait := c.backoff(attempt)
		if classified != nil && classified.Kind == errs.KindRateLimit && classified.RetryAfter > 0 {
			wait = classified.RetryAfter
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", wait).Msg("discovery: catalog request failed, retrying")
		c.sleep(wait)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("discovery: catalog request failed: %w", lastErr)
	}

	var filtered []gamma.Market
	for _, m := range markets {
		if !c.matches(m, criteria) {
			continue
		}
		filtered = append(filtered, m)
		if limit > 0 && len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}

func (c *Client) buildRequest(limit int) *gamma.MarketsRequest {
	active := true
	closed := false
	req := &gamma.MarketsRequest{
		Active: &active,
		Closed: &closed,
		Order:  "volume",
	}
	if limit > 0 {
		l := limit
		req.Limit = &l
	}
	return req
}

func (c *Client) matches(m gamma.Market, criteria event.MarketCriteria) bool {
	if criteria.MinVolume > 0 {
		vol, _ := strconv.ParseFloat(m.Volume24hr, 64)
		if vol < criteria.MinVolume {
			return false
		}
	}
	if criteria.MinLiquidity > 0 {
		liq, _ := strconv.ParseFloat(m.Liquidity, 64)
		if liq < criteria.MinLiquidity {
			return false
		}
	}
	if len(criteria.Keywords) > 0 {
		title := strings.ToLower(m.Question)
		found := false
		for _, kw := range criteria.Keywords {
			if strings.Contains(title, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
