// Package server exposes the dashboard REST API and the browser WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/server/middleware"
	"github.com/alanyoungcy/oddsdesk/internal/server/ws"
)

const healthPath = "/api/health"

// Config holds the HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
	RateLimit   int    // requests per RateWindow per client; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
	Stake     *handler.StakeHandler
	Bets      *handler.BetHandler
	Presets   *handler.PresetHandler
	Stats     *handler.StatsHandler
}

// Server is the dashboard HTTP + WebSocket server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain,
// outermost first: CORS, logging, rate limiting, authentication.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Dashboard.GetStatus)
	mux.HandleFunc("GET /api/feed", handlers.Dashboard.GetFeed)

	mux.HandleFunc("POST /api/stake", handlers.Stake.ComputeStake)
	mux.HandleFunc("GET /api/balances/{bookmaker}", handlers.Stake.GetBalance)

	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("PATCH /api/bets/{id}", handlers.Bets.SettleBet)

	mux.HandleFunc("GET /api/presets", handlers.Presets.ListPresets)
	mux.HandleFunc("GET /api/presets/{id}", handlers.Presets.GetPreset)
	mux.HandleFunc("GET /api/presets/{id}/hidden-items", handlers.Presets.ListHiddenItems)
	mux.HandleFunc("PUT /api/session/preset", handlers.Presets.SelectPreset)
	mux.HandleFunc("DELETE /api/session/preset", handlers.Presets.ClearPreset)

	mux.HandleFunc("GET /api/stats", handlers.Stats.GetStats)
	mux.HandleFunc("GET /api/fixtures", handlers.Stats.GetFixtures)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, healthPath)(h)
	if cfg.RateLimit > 0 && limiter != nil {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger, healthPath, "/ws")(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
