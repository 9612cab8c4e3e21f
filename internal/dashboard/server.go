// Package dashboard serves the read-only polling API: a static banner
// on /, latest-state reads for 1s polls, and repository-backed history
// for charts. It never mutates trading state.
package dashboard

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"quantbot/internal/model"
	"quantbot/internal/portfolio"
)

const (
	snapshotPriceN = 100
	snapshotTradeN = 10
)

// FastReader serves the latest cycle state from the cache, bypassing
// storage. A nil FastReader or a cache miss falls through to the
// repository.
type FastReader interface {
	LatestPrice(ctx context.Context) (model.PricePoint, bool)
	LatestIndicators(ctx context.Context) (model.IndicatorSnapshot, bool)
	LatestTrade(ctx context.Context) (model.Trade, bool)
	LatestPortfolio(ctx context.Context) (model.Portfolio, bool)
}

// Deps are the read sources for the dashboard. Fast may be nil.
type Deps struct {
	Symbol string
	Repo   model.Repository
	Fast   FastReader
	Ledger *portfolio.Ledger
}

// Server is the dashboard HTTP server.
type Server struct {
	symbol string
	repo   model.Repository
	fast   FastReader
	ledger *portfolio.Ledger
	srv    *http.Server
}

// NewServer builds the dashboard server on addr.
func NewServer(addr string, d Deps) *Server {
	s := &Server{
		symbol: d.Symbol,
		repo:   d.Repo,
		fast:   d.Fast,
		ledger: d.Ledger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/latest", s.handleLatest)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/trades", s.handleTrades)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[dashboard] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[dashboard] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the dashboard server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// setCORS sets CORS headers for the API endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode failure"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// initializingResponse is returned with 200 while storage is still
// empty or unreachable, so pollers keep polling instead of erroring.
var initializingResponse = map[string]string{
	"status":  "initializing",
	"message": "Waiting for engine to populate storage...",
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Bot Running - Real Time Engine Active"))
}

type latestResponse struct {
	Status     string                   `json:"status"`
	Symbol     string                   `json:"symbol"`
	Price      float64                  `json:"price"`
	At         time.Time                `json:"at"`
	Indicators *model.IndicatorSnapshot `json:"indicators,omitempty"`
	Trade      *model.Trade             `json:"trade,omitempty"`
	Portfolio  model.Portfolio          `json:"portfolio"`
	PnL        portfolio.Summary        `json:"pnl"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()

	point, ok := s.latestPrice(ctx)
	if !ok {
		writeJSON(w, initializingResponse)
		return
	}

	resp := latestResponse{
		Status: "ok",
		Symbol: s.symbol,
		Price:  point.Price,
		At:     point.Timestamp,
	}
	if snap, ok := s.latestIndicators(ctx); ok {
		resp.Indicators = &snap
	}
	if trade, ok := s.latestTrade(ctx); ok {
		resp.Trade = &trade
	}
	resp.Portfolio = s.portfolioView(ctx)
	resp.PnL = portfolio.Summarize(resp.Portfolio, point.Price)

	writeJSON(w, resp)
}

type snapshotResponse struct {
	Status     string                    `json:"status"`
	Symbol     string                    `json:"symbol"`
	Price      float64                   `json:"price"`
	Portfolio  model.Portfolio           `json:"portfolio"`
	PnL        portfolio.Summary         `json:"pnl"`
	Prices     []model.PricePoint        `json:"prices"`
	Indicators []model.IndicatorSnapshot `json:"indicators"`
	Trades     []model.Trade             `json:"trades"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()

	prices, err := s.repo.RecentPrices(ctx, snapshotPriceN)
	if err != nil || len(prices) == 0 {
		writeJSON(w, initializingResponse)
		return
	}
	indicators, err := s.repo.RecentIndicators(ctx, snapshotPriceN)
	if err != nil {
		writeJSON(w, initializingResponse)
		return
	}
	trades, err := s.repo.RecentTrades(ctx, snapshotTradeN)
	if err != nil {
		writeJSON(w, initializingResponse)
		return
	}
	if indicators == nil {
		indicators = []model.IndicatorSnapshot{}
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	price := prices[len(prices)-1].Price
	pf := s.portfolioView(ctx)

	writeJSON(w, snapshotResponse{
		Status:     "ok",
		Symbol:     s.symbol,
		Price:      price,
		Portfolio:  pf,
		PnL:        portfolio.Summarize(pf, price),
		Prices:     prices,
		Indicators: indicators,
		Trades:     trades,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	trades, err := s.repo.RecentTrades(r.Context(), snapshotTradeN)
	if err != nil {
		writeJSON(w, initializingResponse)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, trades)
}

// ── Read fallbacks: cache first, repository second ──

func (s *Server) latestPrice(ctx context.Context) (model.PricePoint, bool) {
	if s.fast != nil {
		if p, ok := s.fast.LatestPrice(ctx); ok {
			return p, true
		}
	}
	points, err := s.repo.RecentPrices(ctx, 1)
	if err != nil || len(points) == 0 {
		return model.PricePoint{}, false
	}
	return points[len(points)-1], true
}

func (s *Server) latestIndicators(ctx context.Context) (model.IndicatorSnapshot, bool) {
	if s.fast != nil {
		if snap, ok := s.fast.LatestIndicators(ctx); ok {
			return snap, true
		}
	}
	snaps, err := s.repo.RecentIndicators(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return model.IndicatorSnapshot{}, false
	}
	return snaps[len(snaps)-1], true
}

func (s *Server) latestTrade(ctx context.Context) (model.Trade, bool) {
	if s.fast != nil {
		if trade, ok := s.fast.LatestTrade(ctx); ok {
			return trade, true
		}
	}
	trades, err := s.repo.RecentTrades(ctx, 1)
	if err != nil || len(trades) == 0 {
		return model.Trade{}, false
	}
	return trades[0], true
}

// portfolioView prefers the cache mirror so the dashboard read path
// stays valid even when split from the engine process; the live ledger
// is the in-process fallback.
func (s *Server) portfolioView(ctx context.Context) model.Portfolio {
	if s.fast != nil {
		if pf, ok := s.fast.LatestPortfolio(ctx); ok {
			return pf
		}
	}
	return s.ledger.View()
}
