package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/rs/zerolog"
)

// Subscriber is the ingest-side capability a strategy's matches must be
// wired into (C2's IngestSource subscription surface).
type Subscriber interface {
	Subscribe(ctx context.Context, tokenIDs []string) error
	SubscribedTokens() map[string]bool
}

// RuleInstaller is the parser-side capability a strategy's template
// expands into (C3).
type RuleInstaller interface {
	AddRule(r event.ThresholdRule)
	HasRuleForToken(token string) bool
}

// Catalog is the discovery query capability a strategy consumes.
type Catalog interface {
	Discover(ctx context.Context, criteria event.MarketCriteria, limit int) ([]gamma.Market, error)
}

// Manager bridges discovery to the live ingest/parser pipeline: each
// DiscoveryStrategy queries the catalog, deduplicates against existing
// subscriptions and rules, and atomically subscribes + installs a rule
// per new market, honoring a global subscription cap across strategies.
type Manager struct {
	catalog     Catalog
	subscriber  Subscriber
	installer   RuleInstaller
	globalLimit int
	subscribed  int
	log         zerolog.Logger
}

// NewManager constructs a Manager.
func NewManager(catalog Catalog, subscriber Subscriber, installer RuleInstaller, globalLimit int, log zerolog.Logger) *Manager {
	return &Manager{
		catalog:     catalog,
		subscriber:  subscriber,
		installer:   installer,
		globalLimit: globalLimit,
		log:         log,
	}
}

// ExecuteStrategies runs every strategy in order, stopping early once
// the global subscription limit is reached, and returns the total
// number of new markets wired in.
func (m *Manager) ExecuteStrategies(ctx context.Context, strategies []event.DiscoveryStrategy) int {
	total := 0
	for _, s := range strategies {
		if m.subscribed >= m.globalLimit {
			m.log.Warn().Int("subscribed", m.subscribed).Int("limit", m.globalLimit).Msg("discovery: global subscription limit reached, skipping remaining strategies")
			break
		}
		total += m.executeStrategy(ctx, s)
	}
	m.log.Info().Int("added", total).Int("total_subscribed", m.subscribed).Msg("discovery: run complete")
	return total
}

func (m *Manager) executeStrategy(ctx context.Context, s event.DiscoveryStrategy) int {
	remaining := m.globalLimit - m.subscribed
	limit := s.MaxMarkets
	if remaining < limit {
		limit = remaining
	}
	if limit <= 0 {
		return 0
	}

	markets, err := m.catalog.Discover(ctx, s.Criteria, limit)
	if err != nil {
		m.log.Error().Err(err).Str("strategy", s.Name).Msg("discovery: query failed")
		return 0
	}

	added := 0
	for _, market := range markets {
		if m.subscribed >= m.globalLimit {
			break
		}
		tokenID := firstToken(market)
		if tokenID == "" {
			continue
		}
		if m.isDuplicate(tokenID) {
			continue
		}
		if m.addMarket(ctx, tokenID, market, s) {
			added++
			m.subscribed++
		}
	}
	m.log.Info().Str("strategy", s.Name).Int("added", added).Int("discovered", len(markets)).Msg("discovery: strategy complete")
	return added
}

func (m *Manager) isDuplicate(tokenID string) bool {
	if m.subscriber.SubscribedTokens()[tokenID] {
		return true
	}
	return m.installer.HasRuleForToken(tokenID)
}

// addMarket subscribes first and only installs the rule if subscription
// succeeds — a failed rule install after a successful subscribe leaves
// the market data flowing without a trigger, which is acceptable since
// no trade can fire without the rule.
func (m *Manager) addMarket(ctx context.Context, tokenID string, market gamma.Market, s event.DiscoveryStrategy) bool {
	if err := m.subscriber.Subscribe(ctx, []string{tokenID}); err != nil {
		m.log.Error().Err(err).Str("token", tokenID).Msg("discovery: subscribe failed")
		return false
	}

	rule := event.ThresholdRule{
		Token:           tokenID,
		TriggerSide:     s.RuleTemplate.TriggerSide,
		Threshold:       s.RuleTemplate.Threshold,
		Comparison:      s.RuleTemplate.Comparison,
		SizeUSDC:        s.RuleTemplate.SizeUSDC,
		ReasonTemplate:  fmt.Sprintf("[%s] %s | {comparison} {threshold}", s.Name, truncate(market.Question, 50)),
		CooldownSeconds: s.RuleTemplate.CooldownSeconds,
	}
	m.installer.AddRule(rule)

	m.log.Info().Str("token", tokenID).Str("question", market.Question).Float64("threshold", rule.Threshold).Msg("discovery: market added")
	return true
}

func firstToken(m gamma.Market) string {
	tokens := m.ParsedTokens()
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0].TokenID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
