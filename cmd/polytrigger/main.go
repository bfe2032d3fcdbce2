// Command polytrigger runs the signal-driven trading process: it wires
// ingest, rule evaluation, discovery, execution, portfolio accounting,
// persistence, and the optional operator API together and blocks until
// an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	polymarket "github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"

	"github.com/polytrigger/polytrigger/internal/api"
	"github.com/polytrigger/polytrigger/internal/config"
	"github.com/polytrigger/polytrigger/internal/discovery"
	"github.com/polytrigger/polytrigger/internal/executor"
	"github.com/polytrigger/polytrigger/internal/feed"
	"github.com/polytrigger/polytrigger/internal/ingest"
	"github.com/polytrigger/polytrigger/internal/logx"
	"github.com/polytrigger/polytrigger/internal/notify"
	"github.com/polytrigger/polytrigger/internal/orchestrator"
	"github.com/polytrigger/polytrigger/internal/parser"
	"github.com/polytrigger/polytrigger/internal/portfolio"
	"github.com/polytrigger/polytrigger/internal/risk"
	"github.com/polytrigger/polytrigger/internal/store"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	phase := flag.String("phase", "", "rollout phase override: shadow|live-small|live")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	log := logx.New(cfg.LogLevel)

	if err := config.ApplyRolloutPhase(&cfg, *phase); err != nil {
		log.Fatal().Err(err).Msg("invalid rollout phase")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.PrivateKey == "" || cfg.APIKey == "" {
		log.Fatal().Msg("private_key and api_key are required")
	}

	log.Info().Bool("dry_run", cfg.DryRun).Msg("polytrigger starting")

	signer, err := auth.NewPrivateKeySigner(strings.TrimSpace(cfg.PrivateKey), cfg.ChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("signer")
	}
	apiKey := &auth.APIKey{
		Key:        strings.TrimSpace(cfg.APIKey),
		Secret:     strings.TrimSpace(cfg.APISecret),
		Passphrase: strings.TrimSpace(cfg.APIPassphrase),
	}

	sdkClient := polymarket.NewClient()
	clobClient := sdkClient.CLOB.WithAuth(signer, apiKey)
	if cfg.BuilderKey != "" && cfg.BuilderSecret != "" {
		clobClient = clobClient.WithBuilderConfig(&auth.BuilderConfig{
			Local: &auth.BuilderCredentials{
				Key:        strings.TrimSpace(cfg.BuilderKey),
				Secret:     strings.TrimSpace(cfg.BuilderSecret),
				Passphrase: strings.TrimSpace(cfg.BuilderPassphrase),
			},
		})
		log.Info().Msg("builder attribution enabled")
	}
	wsClient := sdkClient.CLOBWS.Authenticate(signer, apiKey)

	books := feed.NewBookSnapshot()
	gauntlet := risk.New(risk.Config{
		MaxPositionSizeUSDC: cfg.MaxPositionSize,
		MinRequestInterval:  cfg.Execution.MinRequestInterval,
	})
	venue := &liveVenue{client: clobClient, signer: signer, startingBalance: cfg.StartingBalanceUSDC}
	exec := executor.New(venue, books, gauntlet, executor.Config{
		DryRun:              cfg.DryRun,
		BuyCrossMultiplier:  cfg.Execution.BuyCrossMultiplier,
		SellCrossMultiplier: cfg.Execution.SellCrossMultiplier,
		MaxSpreadPercent:    cfg.Execution.MaxSpreadPercent,
		MinValidPrice:       cfg.Execution.MinValidPrice,
		MaxValidPrice:       cfg.Execution.MaxValidPrice,
	}, logx.Component(log, "executor"))

	st, err := store.Open(cfg.Store.DBPath, logx.Component(log, "store"))
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()
	journal := store.NewJournal(cfg.Store.JournalDir, logx.Component(log, "journal"))

	pf := portfolio.NewManager(st, cfg.MaxPositions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pf.Load(ctx, exec); err != nil {
		log.Fatal().Err(err).Msg("load portfolio")
	}

	notifier := notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)

	clobSource := ingest.NewClobSource(wsClient, cfg.Ingest.AssetIDs, books, cfg.Ingest.InitialBackoff, logx.Component(log, "ingest.clob"))
	sources := []ingest.Source{clobSource}
	if len(cfg.Ingest.FeedURLs) > 0 {
		sources = append(sources, ingest.NewRSSSource(cfg.Ingest.FeedURLs, cfg.Ingest.FeedInterval, logx.Component(log, "ingest.rss")))
	}

	thresholdParser := parser.NewThresholdParser(cfg.Parser.ThresholdRules, cfg.Parser.DefaultCooldown)
	keywordParser := parser.NewKeywordParser(cfg.Parser.KeywordRules, cfg.Parser.DefaultCooldown)
	rules := []parser.Rule{thresholdParser, keywordParser}

	var discoveryMgr *discovery.Manager
	if len(cfg.Discovery.Strategies) > 0 {
		catalog := discovery.NewClient(sdkClient.Gamma, logx.Component(log, "discovery"),
			cfg.Discovery.MaxRetries, cfg.Discovery.InitialBackoff, cfg.Discovery.MaxBackoff, cfg.Discovery.MinRequestSpacing)
		discoveryMgr = discovery.NewManager(catalog, clobSource, thresholdParser, cfg.Discovery.GlobalLimit, logx.Component(log, "discovery"))
	}

	orch := orchestrator.New(cfg, sources, rules, exec, pf, st, journal, notifier, discoveryMgr, cfg.Discovery.Strategies, log)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, pf, st, gauntlet, cfg.DryRun)
		if err := apiServer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("start api server")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("orchestrator stopped")
	}

	log.Info().Msg("shutting down")
	if !cfg.DryRun {
		resp, err := clobClient.CancelAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("cancel all orders")
		} else {
			log.Info().Int("cancelled", resp.Count).Msg("open orders cancelled")
		}
	}
	_ = wsClient.Close()
	if apiServer != nil {
		_ = apiServer.Shutdown(context.Background())
	}
	log.Info().Msg("shutdown complete")
}

// liveVenue adapts the authenticated CLOB client and signer onto
// executor.VenueClient, grounded on cmd/trader/main.go's
// placeLimit/placeMarket order-builder usage.
type liveVenue struct {
	client clob.Client
	signer auth.Signer

	startingBalance float64
}

func (v *liveVenue) SubmitFOK(ctx context.Context, token string, side string, price, size float64) (clobtypes.OrderResponse, error) {
	builder := clob.NewOrderBuilder(v.client, v.signer).
		TokenID(token).
		Side(side).
		Price(price).
		AmountUSDC(price * size).
		OrderType(clobtypes.OrderTypeFOK)

	signable, err := builder.BuildSignableWithContext(ctx)
	if err != nil {
		return clobtypes.OrderResponse{}, err
	}
	return v.client.CreateOrderFromSignable(ctx, signable)
}

// Balance returns the operator-configured starting USDC balance. No
// catalog or CLOB endpoint attested in this codebase's dependency
// surface exposes a live free-balance read, so the account's funded
// balance is declared in configuration instead; the portfolio manager
// tracks every fill against it from there.
func (v *liveVenue) Balance(ctx context.Context) (float64, error) {
	return v.startingBalance, nil
}
