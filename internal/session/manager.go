// Package session owns the single live feed subscription of the dashboard.
//
// A Manager follows the selected preset: selecting a preset tears down the
// previous stream and connects a new one, a dropped stream is re-dialled
// after a fixed delay, and every asynchronous resumption (dial completion,
// inbound message, reconnect timer) re-checks the manager's current
// selection and generation before touching state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// DefaultReconnectDelay is the pause before re-dialling a dropped stream.
const DefaultReconnectDelay = 3 * time.Second

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("session: manager closed")

// Stream is one open feed subscription.
type Stream interface {
	// Next blocks until the next raw message arrives, the stream fails or
	// ctx is cancelled.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport opens feed subscriptions keyed by preset id.
type Transport interface {
	Dial(ctx context.Context, presetID int64) (Stream, error)
}

// Sink receives session events. Its methods are called with the manager's
// lock held, in order, and must not call back into the Manager.
type Sink interface {
	// SessionReset is called when the selection changes; the sink discards
	// its feed cache and price history. presetID is 0 after Clear.
	SessionReset(presetID int64)
	// FeedUpdate delivers a full-replacement feed snapshot.
	FeedUpdate(presetID int64, opps []domain.Opportunity)
	StatusChanged(status domain.SessionStatus)
}

// Decoder turns a raw feed message into its opportunity list.
type Decoder func(raw []byte) ([]domain.Opportunity, error)

// Config tunes a Manager. Zero values take defaults.
type Config struct {
	ReconnectDelay time.Duration
	Decode         Decoder
}

// Manager is the live session state machine.
type Manager struct {
	transport Transport
	sink      Sink
	decode    Decoder
	delay     time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	presetID int64
	gen      uint64
	state    domain.ConnState
	since    time.Time
	cancel   context.CancelFunc
	timer    *time.Timer
	closed   bool

	wg sync.WaitGroup
}

// NewManager creates a disconnected Manager.
func NewManager(transport Transport, sink Sink, cfg Config, logger *slog.Logger) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Decode == nil {
		cfg.Decode = DecodeJSON
	}
	return &Manager{
		transport: transport,
		sink:      sink,
		decode:    cfg.Decode,
		delay:     cfg.ReconnectDelay,
		logger:    logger.With(slog.String("component", "session")),
		now:       time.Now,
		state:     domain.ConnDisconnected,
		since:     time.Now().UTC(),
	}
}

// Select switches the session to presetID. Any previous stream and pending
// reconnect are cancelled first. Selecting 0 is the same as Clear.
func (m *Manager) Select(presetID int64) error {
	if presetID == 0 {
		m.Clear()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.teardownLocked()
	m.gen++
	m.presetID = presetID
	m.sink.SessionReset(presetID)
	m.logger.Info("preset selected", slog.Int64("preset_id", presetID))
	m.startLocked()
	return nil
}

// Clear deselects the preset and stops the session.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.teardownLocked()
	m.gen++
	if m.presetID != 0 {
		m.logger.Info("preset cleared", slog.Int64("preset_id", m.presetID))
	}
	m.presetID = 0
	m.sink.SessionReset(0)
}

// Close stops the session permanently and waits for its goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.teardownLocked()
	m.gen++
	m.presetID = 0
	m.mu.Unlock()

	m.wg.Wait()
}

// Status returns the current connectivity status.
func (m *Manager) Status() domain.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.SessionStatus{PresetID: m.presetID, State: m.state, Since: m.since}
}

// PresetID returns the selected preset, or 0.
func (m *Manager) PresetID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presetID
}

// startLocked launches a dial for the current generation.
func (m *Manager) startLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(domain.ConnConnecting)

	m.wg.Add(1)
	go m.run(ctx, m.gen, m.presetID)
}

func (m *Manager) teardownLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setStateLocked(domain.ConnDisconnected)
}

func (m *Manager) setStateLocked(state domain.ConnState) {
	if m.state == state {
		return
	}
	m.state = state
	m.since = m.now().UTC()
	m.sink.StatusChanged(domain.SessionStatus{PresetID: m.presetID, State: state, Since: m.since})
}

// current reports whether gen is still the live generation.
func (m *Manager) currentLocked(gen uint64, presetID int64) bool {
	return !m.closed && m.gen == gen && m.presetID == presetID
}

func (m *Manager) run(ctx context.Context, gen uint64, presetID int64) {
	defer m.wg.Done()

	log := m.logger.With(slog.Int64("preset_id", presetID))

	stream, err := m.transport.Dial(ctx, presetID)
	if err != nil {
		if ctx.Err() == nil {
			m.dropped(gen, presetID, fmt.Errorf("session: dial: %w", err))
		}
		return
	}
	defer stream.Close()

	if !m.opened(gen, presetID) {
		return
	}
	log.Info("feed connected")

	for {
		raw, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.dropped(gen, presetID, err)
			return
		}

		opps, err := m.decode(raw)
		if err != nil {
			log.Warn("malformed feed message dropped",
				slog.Int("bytes", len(raw)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if !m.deliver(gen, presetID, opps) {
			return
		}
	}
}

func (m *Manager) opened(gen uint64, presetID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, presetID) {
		return false
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.setStateLocked(domain.ConnConnected)
	return true
}

func (m *Manager) deliver(gen uint64, presetID int64, opps []domain.Opportunity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, presetID) {
		return false
	}
	m.sink.FeedUpdate(presetID, opps)
	return true
}

// dropped marks the session disconnected and schedules a reconnect.
func (m *Manager) dropped(gen uint64, presetID int64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, presetID) {
		return
	}

	m.setStateLocked(domain.ConnDisconnected)
	m.logger.Warn("feed disconnected, reconnect scheduled",
		slog.Int64("preset_id", presetID),
		slog.Duration("delay", m.delay),
		slog.String("error", cause.Error()),
	)

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, func() { m.reconnect(gen, presetID) })
}

func (m *Manager) reconnect(gen uint64, presetID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, presetID) || presetID == 0 {
		return
	}
	m.timer = nil
	m.logger.Info("reconnecting feed", slog.Int64("preset_id", presetID))
	m.startLocked()
}

type envelope struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// DecodeJSON decodes a {"opportunities": [...]} feed message.
func DecodeJSON(raw []byte) ([]domain.Opportunity, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return env.Opportunities, nil
}
