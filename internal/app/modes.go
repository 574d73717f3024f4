package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsdesk/internal/feed"
	"github.com/alanyoungcy/oddsdesk/internal/platform/backend"
	"github.com/alanyoungcy/oddsdesk/internal/posttrade"
	"github.com/alanyoungcy/oddsdesk/internal/server"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/server/ws"
	"github.com/alanyoungcy/oddsdesk/internal/service"
	"github.com/alanyoungcy/oddsdesk/internal/session"
)

// shutdownTimeout bounds HTTP draining on exit.
const shutdownTimeout = 5 * time.Second

// runtime is the live dashboard shared by the dashboard and headless modes.
type runtime struct {
	dashboard  *service.Dashboard
	session    *session.Manager
	reconciler *posttrade.Reconciler
	stakes     *service.StakeService
	bets       *service.BetService
	presets    *service.PresetService
	poller     *service.StatsPoller
}

// buildRuntime assembles the feed board, live session and services on top of
// the wired dependencies.
func (a *App) buildRuntime(deps *Dependencies) *runtime {
	dc := a.cfg.Dashboard

	board := feed.NewBoard(dc.DisplayLimit)
	dash := service.NewDashboard(board, deps.SignalBus, deps.Notifier, a.cfg.Mode, a.logger)

	mgr := session.NewManager(deps.Transport, dash, session.Config{
		ReconnectDelay: dc.ReconnectDelay.Duration,
		Decode:         backend.DecodeFeedMessage,
	}, a.logger)
	dash.Attach(mgr)

	reconciler := posttrade.NewReconciler(deps.Backend, deps.HiddenStore, dash.HideFailed, a.logger).
		WithHiddenTTL(dc.HiddenTTL.Duration)

	return &runtime{
		dashboard:  dash,
		session:    mgr,
		reconciler: reconciler,
		stakes: service.NewStakeService(
			deps.BalanceCache, deps.Backend, dash,
			dc.FallbackBankroll, dc.BalanceTTL.Duration, a.logger,
		),
		bets: service.NewBetService(
			deps.BetStore, deps.Backend, deps.LockManager, deps.SignalBus,
			reconciler, dash, a.logger,
		).WithLockTTL(dc.SubmitLockTTL.Duration),
		presets: service.NewPresetService(deps.PresetStore, deps.HiddenStore, dash, a.logger),
		poller: service.NewStatsPoller(
			deps.BetStore, deps.Backend, deps.HiddenStore, deps.SnapshotCache,
			dash, dc.PollInterval.Duration, a.logger,
		),
	}
}

// close stops the live session and waits for detached hide requests.
func (r *runtime) close() {
	r.session.Close()
	r.reconciler.Wait()
}

// DashboardMode runs the live session, the stats poller, the WebSocket hub
// and the HTTP API.
func (a *App) DashboardMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting dashboard mode")

	rt := a.buildRuntime(deps)
	defer rt.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.dashboard.Run(ctx)
	})
	g.Go(func() error {
		return rt.poller.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, rt)
	} else {
		a.logger.WarnContext(ctx, "server.enabled is false; dashboard mode will run without an API")
	}

	a.selectInitialPreset(ctx, rt)

	return g.Wait()
}

// HeadlessMode runs the live session and the stats poller without HTTP.
// Notifications are the only output, so an initial preset is expected.
func (a *App) HeadlessMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting headless mode")

	if a.cfg.Dashboard.PresetID == 0 {
		a.logger.WarnContext(ctx, "dashboard.preset_id is not set; headless mode will stay idle")
	}

	rt := a.buildRuntime(deps)
	defer rt.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.dashboard.Run(ctx)
	})
	g.Go(func() error {
		return rt.poller.Run(ctx)
	})

	a.selectInitialPreset(ctx, rt)

	return g.Wait()
}

// ArchiveMode exports bets older than dashboard.archive_after_days to object
// storage and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	days := a.cfg.Dashboard.ArchiveAfterDays
	before := time.Now().UTC().AddDate(0, 0, -days)

	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("archive_after_days", days),
		slog.Time("before", before),
	)

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not wired")
	}

	start := time.Now()
	n, err := deps.Archiver.ArchiveBets(ctx, before)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("bets", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// selectInitialPreset opens the configured preset, if any. A failure is
// logged and leaves the session idle.
func (a *App) selectInitialPreset(ctx context.Context, rt *runtime) {
	id := a.cfg.Dashboard.PresetID
	if id == 0 {
		return
	}
	p, err := rt.presets.Select(ctx, id)
	if err != nil {
		a.logger.ErrorContext(ctx, "initial preset selection failed",
			slog.Int64("preset_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "initial preset selected",
		slog.Int64("preset_id", p.ID),
		slog.String("name", p.Name),
	)
}

// startHTTPServer registers the API handlers and the WebSocket hub, and runs
// the server until ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	sc := a.cfg.Server

	hub := ws.NewHub(deps.SignalBus, rt.dashboard, sc.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Dashboard: handler.NewDashboardHandler(rt.dashboard),
		Stake:     handler.NewStakeHandler(rt.stakes, a.logger),
		Bets:      handler.NewBetHandler(rt.bets, a.logger),
		Presets:   handler.NewPresetHandler(rt.presets, a.logger),
		Stats:     handler.NewStatsHandler(rt.poller, a.logger),
	}

	srv := server.NewServer(server.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		CORSOrigins: sc.CORSOrigins,
		APIKey:      sc.APIKey,
		RateLimit:   sc.RateLimit,
		RateWindow:  sc.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
