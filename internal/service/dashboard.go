package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/feed"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/session"
)

const outboxSize = 256

// SessionControl is the part of session.Manager the dashboard drives.
type SessionControl interface {
	Select(presetID int64) error
	Clear()
	Status() domain.SessionStatus
}

var _ session.Sink = (*Dashboard)(nil)

// Dashboard is the session sink. It keeps the feed board for the selected
// preset and fans out feed, status and alert events to the signal bus and the
// notifier. Bus and notifier I/O happens on the Run goroutine so that sink
// callbacks, which hold the session lock, never block on the network.
type Dashboard struct {
	board    *feed.Board
	bus      domain.SignalBus
	notifier *notify.Notifier
	mode     string
	started  time.Time
	logger   *slog.Logger

	// selectMu serialises Select and Clear end to end so the active preset
	// always matches the one the session streams.
	selectMu sync.Mutex

	mu        sync.RWMutex
	session   SessionControl
	preset    *domain.Preset
	selected  int64
	lastState domain.ConnState

	outbox chan outbound
}

type outbound struct {
	channel string
	payload any

	event notify.Event
	title string
	body  string
}

// NewDashboard creates a Dashboard around board. bus and notifier may be nil.
func NewDashboard(board *feed.Board, bus domain.SignalBus, notifier *notify.Notifier, mode string, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		board:     board,
		bus:       bus,
		notifier:  notifier,
		mode:      mode,
		started:   time.Now(),
		logger:    logger.With(slog.String("component", "dashboard")),
		lastState: domain.ConnDisconnected,
		outbox:    make(chan outbound, outboxSize),
	}
}

// Attach sets the session the dashboard controls. It must be called before
// Select.
func (d *Dashboard) Attach(s SessionControl) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = s
}

// Board returns the feed board, the cache rewritten by after-trade policies.
func (d *Dashboard) Board() *feed.Board {
	return d.board
}

// Select makes p the active preset and (re)connects its feed.
func (d *Dashboard) Select(p domain.Preset) error {
	d.selectMu.Lock()
	defer d.selectMu.Unlock()

	d.mu.Lock()
	d.preset = &p
	d.selected = p.ID
	s := d.session
	d.mu.Unlock()

	if s == nil {
		return fmt.Errorf("service: select preset %d: no session attached", p.ID)
	}
	if err := s.Select(p.ID); err != nil {
		return fmt.Errorf("service: select preset %d: %w", p.ID, err)
	}
	return nil
}

// Clear deselects the active preset and stops the feed.
func (d *Dashboard) Clear() {
	d.selectMu.Lock()
	defer d.selectMu.Unlock()

	d.mu.Lock()
	d.preset = nil
	d.selected = 0
	s := d.session
	d.mu.Unlock()

	if s != nil {
		s.Clear()
	}
}

// Preset returns the active preset.
func (d *Dashboard) Preset() (domain.Preset, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.preset == nil {
		return domain.Preset{}, false
	}
	return *d.preset, true
}

// Feed returns the ranked feed of the active preset.
func (d *Dashboard) Feed() domain.FeedSnapshot {
	return d.board.Snapshot()
}

// Status summarises the dashboard for /api/status.
func (d *Dashboard) Status() domain.DashboardStatus {
	d.mu.RLock()
	s := d.session
	d.mu.RUnlock()

	st := domain.DashboardStatus{
		Mode:          d.mode,
		FeedState:     domain.ConnDisconnected,
		FeedRows:      d.board.Len(),
		UptimeSeconds: int64(time.Since(d.started).Seconds()),
	}
	if s != nil {
		ss := s.Status()
		st.PresetID = ss.PresetID
		st.FeedState = ss.State
	}
	return st
}

// SessionReset implements session.Sink.
func (d *Dashboard) SessionReset(presetID int64) {
	sortBy, sortOrder := "", ""
	d.mu.RLock()
	if d.preset != nil && d.preset.ID == presetID {
		sortBy, sortOrder = d.preset.SortBy, d.preset.SortOrder
	}
	d.mu.RUnlock()

	d.board.Reset(presetID, sortBy, sortOrder)
	d.enqueue(outbound{channel: domain.ChannelFeed, payload: d.board.Snapshot()})
}

// FeedUpdate implements session.Sink.
func (d *Dashboard) FeedUpdate(presetID int64, opps []domain.Opportunity) {
	if d.board.PresetID() != presetID {
		return
	}
	d.enqueue(outbound{channel: domain.ChannelFeed, payload: d.board.Apply(opps)})
}

// StatusChanged implements session.Sink. A drop is only alerted when the
// selected preset's live stream goes away, not when the operator switches.
func (d *Dashboard) StatusChanged(status domain.SessionStatus) {
	d.mu.Lock()
	prev := d.lastState
	d.lastState = status.State
	selected := d.selected
	d.mu.Unlock()

	d.enqueue(outbound{channel: domain.ChannelStatus, payload: status})

	switch {
	case status.State == domain.ConnConnected:
		d.Alert(notify.EventFeedConnected, "Feed connected",
			fmt.Sprintf("Preset %d is live.", status.PresetID))
	case status.State == domain.ConnDisconnected && prev == domain.ConnConnected &&
		status.PresetID != 0 && status.PresetID == selected:
		d.Alert(notify.EventFeedDisconnected, "Feed disconnected",
			fmt.Sprintf("Preset %d lost its feed; reconnecting.", status.PresetID))
	}
}

// PublishFeed pushes a re-rendered feed to dashboard clients.
func (d *Dashboard) PublishFeed(snap domain.FeedSnapshot) {
	d.enqueue(outbound{channel: domain.ChannelFeed, payload: snap})
}

// Publish queues payload for a bus channel.
func (d *Dashboard) Publish(channel string, payload any) {
	d.enqueue(outbound{channel: channel, payload: payload})
}

// Alert queues a notification.
func (d *Dashboard) Alert(event notify.Event, title, body string) {
	if !d.notifier.Enabled(event) {
		return
	}
	d.enqueue(outbound{event: event, title: title, body: body})
}

// HideFailed is the posttrade failure hook.
func (d *Dashboard) HideFailed(_ context.Context, item domain.HiddenItem, err error) {
	d.Alert(notify.EventHideFailed, "Hide request failed",
		fmt.Sprintf("Preset %d, event %s: %v", item.PresetID, item.EventID, err))
}

// Run delivers queued events until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "dashboard dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "dashboard dispatcher stopped")
			return nil
		case out := <-d.outbox:
			d.dispatch(ctx, out)
		}
	}
}

func (d *Dashboard) enqueue(out outbound) {
	select {
	case d.outbox <- out:
	default:
		d.logger.Warn("dashboard outbox full, event dropped",
			slog.String("channel", out.channel),
			slog.String("event", string(out.event)),
		)
	}
}

func (d *Dashboard) dispatch(ctx context.Context, out outbound) {
	if out.event != "" {
		if err := d.notifier.Notify(ctx, out.event, out.title, out.body); err != nil {
			d.logger.WarnContext(ctx, "notification failed",
				slog.String("event", string(out.event)),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if d.bus == nil {
		return
	}

	payload, err := json.Marshal(out.payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "marshal bus payload",
			slog.String("channel", out.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := d.bus.Publish(ctx, out.channel, payload); err != nil {
		d.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", out.channel),
			slog.String("error", err.Error()),
		)
	}
}
