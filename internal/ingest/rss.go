package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/polytrigger/polytrigger/internal/event"
)

// RSSSource polls a fixed list of RSS/Atom feeds on an interval and
// emits a news MarketEvent per new entry, deduplicated by GUID, falling
// back to link, falling back to a hash of the title. Grounded on
// original_source's RssIngester (_get_entry_id/_poll_feeds).
type RSSSource struct {
	feedURLs []string
	interval time.Duration
	parser   *gofeed.Parser
	seen     map[string]struct{}
	log      zerolog.Logger
}

// NewRSSSource constructs an RSSSource.
func NewRSSSource(feedURLs []string, interval time.Duration, log zerolog.Logger) *RSSSource {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &RSSSource{
		feedURLs: feedURLs,
		interval: interval,
		parser:   gofeed.NewParser(),
		seen:     make(map[string]struct{}),
		log:      log,
	}
}

// Run implements Source.
func (r *RSSSource) Run(ctx context.Context, out chan<- event.MarketEvent) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pollAll(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.pollAll(ctx, out)
		}
	}
}

func (r *RSSSource) pollAll(ctx context.Context, out chan<- event.MarketEvent) {
	for _, url := range r.feedURLs {
		feed, err := r.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("url", url).Msg("rss ingest: failed to poll feed")
			continue
		}
		title := feed.Title
		if title == "" {
			title = url
		}
		for _, item := range feed.Items {
			id := entryID(item)
			if _, ok := r.seen[id]; ok {
				continue
			}
			r.seen[id] = struct{}{}
			out <- event.MarketEvent{
				Kind:       event.KindNews,
				IngestedAt: time.Now(),
				Content:    item.Title,
				Source:     title,
			}
		}
	}
}

func entryID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	sum := sha1.Sum([]byte(item.Title))
	return hex.EncodeToString(sum[:])
}
