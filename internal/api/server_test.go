package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/polytrigger/polytrigger/internal/store"
)

type mockPortfolio struct {
	cashBalance float64
	positions   map[string]event.Position
}

func (m *mockPortfolio) CashBalance() float64                 { return m.cashBalance }
func (m *mockPortfolio) Positions() map[string]event.Position { return m.positions }

type mockTrades struct {
	trades []store.Trade
	err    error
}

func (m *mockTrades) RecentTrades(_ context.Context, _ int) ([]store.Trade, error) {
	return m.trades, m.err
}

type mockRisk struct{ stopped bool }

func (m *mockRisk) EmergencyStop() bool       { return m.stopped }
func (m *mockRisk) SetEmergencyStop(stop bool) { m.stopped = stop }

func TestHandleHealthz(t *testing.T) {
	s := NewServer(":0", &mockPortfolio{}, &mockTrades{}, &mockRisk{}, true)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ok"] != true {
		t.Fatalf("expected ok=true, got %v", resp["ok"])
	}
}

func TestHandleStatus(t *testing.T) {
	portfolio := &mockPortfolio{
		cashBalance: 250.75,
		positions: map[string]event.Position{
			"token-a": {Token: "token-a", Quantity: 10},
		},
	}
	risk := &mockRisk{stopped: false}
	s := NewServer(":0", portfolio, &mockTrades{}, risk, true)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["dry_run"] != true {
		t.Errorf("expected dry_run true, got %v", resp["dry_run"])
	}
	if resp["cash_balance"] != 250.75 {
		t.Errorf("expected cash_balance 250.75, got %v", resp["cash_balance"])
	}
	if resp["open_positions"] != float64(1) {
		t.Errorf("expected open_positions 1, got %v", resp["open_positions"])
	}
	if resp["emergency_stop"] != false {
		t.Errorf("expected emergency_stop false, got %v", resp["emergency_stop"])
	}
}

func TestHandlePositions(t *testing.T) {
	portfolio := &mockPortfolio{
		positions: map[string]event.Position{
			"token-a": {
				Token:         "token-a",
				Side:          event.PositionLong,
				Quantity:      5,
				AvgEntryPrice: 0.40,
				CurrentPrice:  0.45,
				OpenedAt:      time.Unix(1700000000, 0).UTC(),
			},
		},
	}
	s := NewServer(":0", portfolio, &mockTrades{}, &mockRisk{}, false)

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	w := httptest.NewRecorder()
	s.handlePositions(w, req)

	var resp struct {
		Count     int `json:"count"`
		Positions []struct {
			Token         string  `json:"token"`
			Quantity      float64 `json:"quantity"`
			AvgEntryPrice float64 `json:"avg_entry_price"`
		} `json:"positions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected count 1, got %d", resp.Count)
	}
	if resp.Positions[0].Token != "token-a" || resp.Positions[0].Quantity != 5 {
		t.Fatalf("unexpected position entry: %+v", resp.Positions[0])
	}
}

func TestHandlePositionsEmpty(t *testing.T) {
	s := NewServer(":0", &mockPortfolio{positions: map[string]event.Position{}}, &mockTrades{}, &mockRisk{}, false)
	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	w := httptest.NewRecorder()
	s.handlePositions(w, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["count"] != float64(0) {
		t.Fatalf("expected count 0, got %v", resp["count"])
	}
}

func TestHandleTrades(t *testing.T) {
	trades := &mockTrades{trades: []store.Trade{
		{OrderID: "order-1", Token: "token-a", Side: event.SideBuy, ExecutedAt: 1700000000},
	}}
	s := NewServer(":0", &mockPortfolio{}, trades, &mockRisk{}, false)

	req := httptest.NewRequest(http.MethodGet, "/trades?limit=10", nil)
	w := httptest.NewRecorder()
	s.handleTrades(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["count"] != float64(1) {
		t.Fatalf("expected count 1, got %v", resp["count"])
	}
}

func TestHandleTradesStoreError(t *testing.T) {
	trades := &mockTrades{err: context.DeadlineExceeded}
	s := NewServer(":0", &mockPortfolio{}, trades, &mockRisk{}, false)

	req := httptest.NewRequest(http.MethodGet, "/trades", nil)
	w := httptest.NewRecorder()
	s.handleTrades(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandleRiskGet(t *testing.T) {
	s := NewServer(":0", &mockPortfolio{}, &mockTrades{}, &mockRisk{stopped: true}, false)
	req := httptest.NewRequest(http.MethodGet, "/risk", nil)
	w := httptest.NewRecorder()
	s.handleRisk(w, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["emergency_stop"] != true {
		t.Fatalf("expected emergency_stop true, got %v", resp["emergency_stop"])
	}
}

func TestHandleRiskPostTripsStop(t *testing.T) {
	risk := &mockRisk{}
	s := NewServer(":0", &mockPortfolio{}, &mockTrades{}, risk, false)
	req := httptest.NewRequest(http.MethodPost, "/risk", nil)
	w := httptest.NewRecorder()
	s.handleRisk(w, req)

	if !risk.stopped {
		t.Fatal("expected emergency stop to be tripped")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleRiskMethodNotAllowed(t *testing.T) {
	s := NewServer(":0", &mockPortfolio{}, &mockTrades{}, &mockRisk{}, false)
	req := httptest.NewRequest(http.MethodDelete, "/risk", nil)
	w := httptest.NewRecorder()
	s.handleRisk(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
