// Package main runs the trading agent service: an HTTP surface that
// triggers trading cycles and serves performance and history reads,
// plus Prometheus metrics on a separate address.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/config"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/decision"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/executor"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/jupiter"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/notify"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/observability"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/solana"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
	chstore "github.com/SuzukiTakamasa/solana-trading-bot/internal/storage/clickhouse"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage/memory"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage/migrations"
	pgstore "github.com/SuzukiTakamasa/solana-trading-bot/internal/storage/postgres"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/trader"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/trend"
)

// Server wires the trader behind the HTTP surface.
type Server struct {
	trader *trader.Trader
	logger *log.Logger
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	tr, wsClose, err := buildTrader(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatalf("Failed to build trader: %v", err)
	}
	defer wsClose()

	server := &Server{trader: tr, logger: logger}

	// Prometheus metrics on a separate address
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}()

	logger.Printf("Starting HTTP server on %s (pair %s/%s)", cfg.Addr, cfg.BaseMint, cfg.QuoteMint)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// stores bundles the storage implementations behind their interfaces.
type stores struct {
	prices   storage.PriceStore
	sessions storage.SessionStore
	archive  storage.PriceArchive // nil unless ClickHouse is configured
}

// createStores creates storage, runs migrations, and returns a cleanup.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, func(), error) {
	if cfg.UseMemory {
		return &stores{
			prices:   memory.NewPriceStore(),
			sessions: memory.NewSessionStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	st := &stores{
		prices:   pgstore.NewPriceStore(pool),
		sessions: pgstore.NewSessionStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse archive is optional
	if cfg.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		st.archive = chstore.NewPriceArchiveStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return st, cleanup, nil
}

// buildTrader assembles the trading components.
func buildTrader(ctx context.Context, cfg *config.Config, st *stores, logger *log.Logger) (*trader.Trader, func(), error) {
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	jup := jupiter.NewClient(cfg.JupiterAPIURL)

	var ws solana.WSClient
	wsClose := func() {}
	if cfg.WSEndpoint != "" {
		wsClient, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
		if err != nil {
			// Polling fallback covers confirmation without the socket
			logger.Printf("WebSocket connect failed, confirmations poll only: %v", err)
		} else {
			ws = wsClient
			wsClose = func() { wsClient.Close() }
		}
	}

	engine, err := decision.NewEngine(cfg.TrendThresholdPct, shortestWindow(cfg.TrendWindows), cfg.SellBasis)
	if err != nil {
		return nil, nil, err
	}

	exec := executor.New(rpc, ws, jup, executor.Config{
		BaseMint:            cfg.BaseMint,
		QuoteMint:           cfg.QuoteMint,
		BaseDecimals:        cfg.BaseDecimals,
		QuoteDecimals:       cfg.QuoteDecimals,
		SlippageBps:         cfg.SlippageBps,
		FeeReserve:          cfg.FeeReserve,
		WalletSecret:        cfg.WalletSecret,
		ConfirmMaxAttempts:  cfg.ConfirmMaxAttempts,
		ConfirmInitialDelay: cfg.ConfirmInitialDelay,
	}, log.New(os.Stdout, "[executor] ", log.LstdFlags))

	var notifier notify.Notifier
	if cfg.LINEChannelToken != "" && cfg.LINEUserID != "" {
		notifier = notify.NewLINEClient(cfg.LINEChannelToken, cfg.LINEUserID, "")
	} else {
		logger.Println("LINE credentials not set, notifications go to the log")
		notifier = notify.NewLogNotifier(log.New(os.Stdout, "[notify] ", log.LstdFlags))
	}

	tr := trader.New(trader.Options{
		PriceStore:   st.prices,
		SessionStore: st.sessions,
		Archive:      st.archive,
		Oracle:       jup,
		Swapper:      exec,
		Status:       rpc,
		Analyzer:     trend.NewAnalyzer(cfg.TrendWindows),
		Engine:       engine,
		Notifier:     notifier,
		Metrics:      observability.NewMetrics(""),
		Logger:       log.New(os.Stdout, "[trader] ", log.LstdFlags),
		Config: trader.Config{
			BaseMint:         cfg.BaseMint,
			QuoteMint:        cfg.QuoteMint,
			BaseDecimals:     cfg.BaseDecimals,
			QuoteDecimals:    cfg.QuoteDecimals,
			TradeAmountQuote: cfg.TradeAmountQuote,
			CycleDeadline:    cfg.CycleDeadline,
			RetentionDays:    cfg.RetentionDays,
		},
	})

	return tr, wsClose, nil
}

func shortestWindow(windows []time.Duration) time.Duration {
	shortest := windows[0]
	for _, w := range windows[1:] {
		if w < shortest {
			shortest = w
		}
	}
	return shortest
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/trigger", s.handleTrigger)
	mux.HandleFunc("/api/performance", s.handlePerformance)
	mux.HandleFunc("/api/price-history", s.handlePriceHistory)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleTrigger runs one trading cycle. An overlapping trigger is
// rejected immediately with 409.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.trader.RunCycle(r.Context())
	if errors.Is(err, trader.ErrCycleInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cycle in progress"})
		return
	}
	if err != nil {
		s.logger.Printf("Cycle failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// performanceResponse is the JSON projection of the trading state.
type performanceResponse struct {
	PositionState    string  `json:"position_state"`
	EntryPrice       *string `json:"entry_price,omitempty"`
	CumulativeProfit string  `json:"cumulative_profit"`
	TradeCount       int64   `json:"trade_count"`
	WinningTrades    int64   `json:"winning_trades"`
	LosingTrades     int64   `json:"losing_trades"`
	WinRatePct       string  `json:"win_rate_pct"`
	Sessions         int64   `json:"attempted_sessions"`
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	state, err := s.trader.Performance(r.Context(), days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := performanceResponse{
		PositionState:    string(state.Position.State),
		CumulativeProfit: state.CumulativeProfit.String(),
		TradeCount:       state.TradeCount,
		WinningTrades:    state.WinningTrades,
		LosingTrades:     state.LosingTrades,
		WinRatePct:       state.WinRatePct().StringFixed(2),
		Sessions:         state.AttemptedSessions,
	}
	if state.Position.EntryPrice != nil {
		entry := state.Position.EntryPrice.String()
		resp.EntryPrice = &entry
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))

	points, err := s.trader.PriceHistory(r.Context(), hours)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type pricePointResponse struct {
		Timestamp time.Time `json:"timestamp"`
		Price     string    `json:"price"`
		Source    string    `json:"source"`
	}
	resp := make([]pricePointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, pricePointResponse{
			Timestamp: p.Timestamp,
			Price:     p.Price.String(),
			Source:    p.Source,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := s.trader.RecentSessions(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
