package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/store"
)

// PortfolioState exposes the portfolio manager's read surface for the
// API layer.
type PortfolioState interface {
	CashBalance() float64
	Positions() map[string]event.Position
}

// TradeHistory exposes the persisted trade journal for the API layer.
type TradeHistory interface {
	RecentTrades(ctx context.Context, limit int) ([]store.Trade, error)
}

// RiskState exposes the executor's gauntlet kill switch for the API
// layer.
type RiskState interface {
	EmergencyStop() bool
	SetEmergencyStop(stop bool)
}

// Server is a lightweight, operator-facing HTTP status API.
type Server struct {
	httpServer *http.Server
	portfolio  PortfolioState
	trades     TradeHistory
	risk       RiskState
	dryRun     bool
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, portfolio PortfolioState, trades TradeHistory, risk RiskState, dryRun bool) *Server {
	s := &Server{
		portfolio: portfolio,
		trades:    trades,
		risk:      risk,
		dryRun:    dryRun,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/positions", s.handlePositions)
	mux.HandleFunc("/trades", s.handleTrades)
	mux.HandleFunc("/risk", s.handleRisk)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /healthz — liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /status — overall system status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	positions := s.portfolio.Positions()
	s.writeJSON(w, map[string]interface{}{
		"dry_run":        s.dryRun,
		"uptime_s":       time.Since(s.startedAt).Seconds(),
		"cash_balance":   s.portfolio.CashBalance(),
		"open_positions": len(positions),
		"emergency_stop": s.risk.EmergencyStop(),
	})
}

// GET /positions — current tracked positions.
func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.portfolio.Positions()
	type positionEntry struct {
		Token         string             `json:"token"`
		Side          event.PositionSide `json:"side"`
		Quantity      float64            `json:"quantity"`
		AvgEntryPrice float64            `json:"avg_entry_price"`
		CurrentPrice  float64            `json:"current_price"`
		OpenedAt      time.Time          `json:"opened_at"`
	}
	entries := make([]positionEntry, 0, len(positions))
	for _, p := range positions {
		entries = append(entries, positionEntry{
			Token:         p.Token,
			Side:          p.Side,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
			CurrentPrice:  p.CurrentPrice,
			OpenedAt:      p.OpenedAt,
		})
	}
	s.writeJSON(w, map[string]interface{}{"positions": entries, "count": len(entries)})
}

// GET /trades?limit=50 — recent fills across all tokens, newest first.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trades, err := s.trades.RecentTrades(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type tradeEntry struct {
		OrderID    string     `json:"order_id"`
		Token      string     `json:"token"`
		Side       event.Side `json:"side"`
		Quantity   string     `json:"quantity"`
		Price      string     `json:"price"`
		Fees       string     `json:"fees"`
		ExecutedAt int64      `json:"executed_at"`
	}
	entries := make([]tradeEntry, len(trades))
	for i, t := range trades {
		entries[i] = tradeEntry{
			OrderID:    t.OrderID,
			Token:      t.Token,
			Side:       t.Side,
			Quantity:   t.Quantity.String(),
			Price:      t.Price.String(),
			Fees:       t.Fees.String(),
			ExecutedAt: t.ExecutedAt,
		}
	}
	s.writeJSON(w, map[string]interface{}{"trades": entries, "count": len(entries)})
}

// GET /risk reports the kill-switch state; POST trips it.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, map[string]interface{}{"emergency_stop": s.risk.EmergencyStop()})
	case http.MethodPost:
		s.risk.SetEmergencyStop(true)
		s.writeJSON(w, map[string]string{"status": "emergency_stop_activated"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
