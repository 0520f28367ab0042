// Package api provides the HTTP API server for buywrite.
//
// It exposes endpoints for running covered-call backtests and parameter
// sweeps, fetching the price and earnings data behind them, and a WebSocket
// stream of job lifecycle events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/internal/config"
	"github.com/quantfray/buywrite/internal/datasource"
	"github.com/quantfray/buywrite/internal/sweep"
	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// minBars is the shortest series the API will backtest or sweep. Shorter
// series leave the volatility estimate meaningless.
const minBars = 30

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	agg     *datasource.Aggregator
	wsHub   *WSHub
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config) *Server {
	srv := &Server{
		cfg:     cfg,
		agg:     datasource.NewAggregator(cfg.Data.Options()),
		wsHub:   NewWSHub(),
		version: "dev",
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetVersion sets the version string reported by /health.
func (s *Server) SetVersion(v string) {
	if v != "" {
		s.version = v
	}
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.Server.CORSOrigins) > 0 {
		origins = s.cfg.Server.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// WebSocket (also aliased under /api/v1)
	r.Get("/ws", s.handleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Backtesting
		r.Post("/backtest", s.handleBacktest)
		r.Post("/sweep", s.handleSweep)

		// Market data
		r.Get("/bars/{ticker}", s.handleBars)
		r.Get("/earnings/{ticker}", s.handleEarnings)

		// Configuration
		r.Get("/config", s.handleGetConfig)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BacktestRequest is the body for POST /api/v1/backtest. Either an inline bar
// series or a ticker plus date range must be supplied; inline bars win when
// both are present. Params fields overlay the server's configured backtest
// defaults, so a request can set just target_delta and inherit the rest.
type BacktestRequest struct {
	Ticker string            `json:"ticker,omitempty"`
	From   string            `json:"from,omitempty"` // YYYY-MM-DD
	To     string            `json:"to,omitempty"`   // YYYY-MM-DD, default today
	Bars   []models.PriceBar `json:"bars,omitempty"`
	Params json.RawMessage   `json:"params,omitempty"`
}

// SweepRequest is the body for POST /api/v1/sweep.
type SweepRequest struct {
	BacktestRequest
	TargetDeltas []float64 `json:"target_deltas"`
}

// SweepEntry is one variant's outcome in a sweep response. Entries preserve
// the order of the requested deltas.
type SweepEntry struct {
	TargetDelta float64        `json:"target_delta"`
	Result      *models.Result `json:"result"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": s.version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params, err := s.baseParams(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid params: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	bars, earnings, ticker, ok := s.resolveSeries(ctx, w, &req, params.SkipEarnings)
	if !ok {
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "backtest_started",
		Data: map[string]interface{}{"ticker": ticker, "bars": len(bars)},
	})

	result := backtest.New(params).Run(bars, earnings)

	s.wsHub.Broadcast(WSMessage{
		Type: "backtest_complete",
		Data: map[string]interface{}{
			"ticker":    ticker,
			"cc_return": result.CCReturn,
			"bh_return": result.BHReturn,
		},
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.TargetDeltas) == 0 {
		writeError(w, http.StatusBadRequest, "target_deltas is required")
		return
	}

	params, err := s.baseParams(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid params: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	bars, earnings, ticker, ok := s.resolveSeries(ctx, w, &req.BacktestRequest, params.SkipEarnings)
	if !ok {
		return
	}

	variants := sweep.DeltaVariants(params, req.TargetDeltas)

	s.wsHub.Broadcast(WSMessage{
		Type: "sweep_started",
		Data: map[string]interface{}{"ticker": ticker, "variants": len(variants)},
	})

	outcomes, err := sweep.New(0).Run(ctx, bars, earnings, variants)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]SweepEntry, len(outcomes))
	for i, o := range outcomes {
		entries[i] = SweepEntry{
			TargetDelta: o.Variant.Params.TargetDelta,
			Result:      o.Result,
		}
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "sweep_complete",
		Data: map[string]interface{}{"ticker": ticker, "variants": len(entries)},
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    entries,
	})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	ticker = utils.NormalizeTicker(ticker)

	from, err := utils.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; use YYYY-MM-DD")
		return
	}
	to := time.Now().UTC()
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = utils.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date; use YYYY-MM-DD")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	bars, err := s.agg.Yahoo().GetDailyBars(ctx, ticker, from, to)
	if err != nil {
		writeError(w, fetchStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"ticker": ticker,
			"bars":   bars,
		},
	})
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	ticker = utils.NormalizeTicker(ticker)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	dates, err := s.agg.Earnings().GetEarningsDates(ctx, ticker)
	if err != nil {
		writeError(w, fetchStatus(err), err.Error())
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = utils.FormatDate(d)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"ticker": ticker,
			"dates":  out,
		},
	})
}

// ============================================================
// Helpers
// ============================================================

// baseParams starts from the configured defaults and overlays any fields the
// request's params object names.
func (s *Server) baseParams(raw json.RawMessage) (backtest.Params, error) {
	params := s.cfg.Backtest.Params()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return params, err
		}
	}
	return params, nil
}

// resolveSeries produces the bar series and earnings dates for a backtest or
// sweep request, fetching them when the request names a ticker instead of
// carrying bars inline. On failure it writes the error response and returns
// ok=false.
func (s *Server) resolveSeries(ctx context.Context, w http.ResponseWriter, req *BacktestRequest, wantEarnings bool) (bars []models.PriceBar, earnings []time.Time, ticker string, ok bool) {
	switch {
	case len(req.Bars) > 0:
		bars = req.Bars
		ticker = utils.NormalizeTicker(req.Ticker)

	case req.Ticker != "":
		ticker = utils.NormalizeTicker(req.Ticker)

		from, err := utils.ParseDate(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; use YYYY-MM-DD")
			return nil, nil, "", false
		}
		to := time.Now().UTC()
		if req.To != "" {
			if to, err = utils.ParseDate(req.To); err != nil {
				writeError(w, http.StatusBadRequest, "invalid to date; use YYYY-MM-DD")
				return nil, nil, "", false
			}
		}

		md, err := s.agg.FetchMarketData(ctx, ticker, from, to, wantEarnings)
		if err != nil {
			writeError(w, fetchStatus(err), fmt.Sprintf("fetch %s: %v", ticker, err))
			return nil, nil, "", false
		}
		bars = md.Bars
		earnings = md.Earnings

	default:
		writeError(w, http.StatusBadRequest, "ticker or bars is required")
		return nil, nil, "", false
	}

	if len(bars) < minBars {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("insufficient data: %d bars (need %d)", len(bars), minBars))
		return nil, nil, "", false
	}
	return bars, earnings, ticker, true
}

// fetchStatus maps fetch-layer errors onto HTTP statuses. These handlers only
// fail upstream, so the fallback is 502 rather than 500.
func fetchStatus(err error) int {
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound), errors.Is(err, datasource.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
