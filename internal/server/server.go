// Package server wires the HTTP surface: the push endpoint, the public query
// API, the metrics endpoint, and the WebSocket feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/server/handler"
	"github.com/predictstack/indexer/internal/server/middleware"
	"github.com/predictstack/indexer/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// ChainhookSecret guards the push endpoint. Empty disables the check.
	ChainhookSecret string

	// RateLimit applies to the public query API when a limiter is provided.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Chainhook *handler.ChainhookHandler
	Rounds    *handler.RoundHandler
	Bets      *handler.BetHandler
	Pools     *handler.PoolHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. limiter
// and wsHub may be nil, disabling rate limiting and the live feed.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// limited wraps public query routes with per-IP rate limiting.
	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}

	// Push endpoint: the secret is checked before any parsing, and the
	// public rate limit never applies to upstream deliveries.
	mux.Handle("POST /api/chainhook",
		middleware.Auth(cfg.ChainhookSecret)(http.HandlerFunc(handlers.Chainhook.Receive)))

	mux.Handle("GET /api/rounds", limited(handlers.Rounds.ListRounds))
	mux.Handle("GET /api/rounds/{id}", limited(handlers.Rounds.GetRound))
	mux.Handle("GET /api/rounds/{id}/claims", limited(handlers.Rounds.ListClaims))
	mux.Handle("GET /api/bets", limited(handlers.Bets.ListBets))
	mux.Handle("GET /api/bets/{roundId}", limited(handlers.Bets.ListRoundBets))
	mux.Handle("GET /api/pools", limited(handlers.Pools.ListPools))
	mux.Handle("GET /api/pools/stats/summary", limited(handlers.Pools.Stats))
	mux.Handle("GET /api/pools/{id}", limited(handlers.Pools.GetPool))
	mux.Handle("GET /api/pools/{id}/bets", limited(handlers.Pools.ListPoolBets))

	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start blocks serving requests until an error or shutdown.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
