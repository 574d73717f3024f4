package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/feed"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ptr[T any](v T) *T { return &v }

// fakeSession forwards selection to the dashboard the way session.Manager
// does, without any transport.
type fakeSession struct {
	sink     *Dashboard
	presetID int64
	state    domain.ConnState
	err      error
}

func (f *fakeSession) Select(id int64) error {
	if f.err != nil {
		return f.err
	}
	f.teardown()
	f.presetID = id
	f.sink.SessionReset(id)
	f.state = domain.ConnConnecting
	f.sink.StatusChanged(domain.SessionStatus{PresetID: id, State: f.state})
	return nil
}

func (f *fakeSession) Clear() {
	f.teardown()
	f.presetID = 0
	f.sink.SessionReset(0)
}

func (f *fakeSession) teardown() {
	if f.state != domain.ConnDisconnected {
		f.state = domain.ConnDisconnected
		f.sink.StatusChanged(domain.SessionStatus{PresetID: f.presetID, State: f.state})
	}
}

func (f *fakeSession) Status() domain.SessionStatus {
	return domain.SessionStatus{PresetID: f.presetID, State: f.state}
}

func newTestDashboard(notifier *notify.Notifier) (*Dashboard, *fakeSession) {
	d := NewDashboard(feed.NewBoard(20), nil, notifier, "dashboard", discard())
	s := &fakeSession{sink: d, state: domain.ConnDisconnected}
	d.Attach(s)
	return d, s
}

// drain empties the dashboard outbox without dispatching.
func drain(d *Dashboard) []outbound {
	var out []outbound
	for {
		select {
		case o := <-d.outbox:
			out = append(out, o)
		default:
			return out
		}
	}
}

func channels(out []outbound) []string {
	var chs []string
	for _, o := range out {
		if o.channel != "" {
			chs = append(chs, o.channel)
		}
	}
	return chs
}

func events(out []outbound) []notify.Event {
	var evs []notify.Event
	for _, o := range out {
		if o.event != "" {
			evs = append(evs, o.event)
		}
	}
	return evs
}

type recordingSender struct {
	mu  sync.Mutex
	got []notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

type memBets struct {
	mu      sync.Mutex
	nextID  int64
	bets    map[int64]domain.Bet
	summary domain.BetSummary
	err     error
}

func newMemBets() *memBets { return &memBets{bets: map[int64]domain.Bet{}} }

func (m *memBets) Create(_ context.Context, b domain.Bet) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	b.ID = m.nextID
	m.bets[b.ID] = b
	return b.ID, nil
}

func (m *memBets) GetByID(_ context.Context, id int64) (domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBets) List(_ context.Context, _ domain.BetFilter) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Bet, 0, len(m.bets))
	for _, b := range m.bets {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBets) Settle(_ context.Context, id int64, status domain.BetStatus, payout *float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status, b.Payout, b.SettledAt = status, payout, &at
	m.bets[id] = b
	return nil
}

func (m *memBets) Summary(_ context.Context, _ int64) (domain.BetSummary, error) {
	return m.summary, m.err
}

func (m *memBets) ListBefore(_ context.Context, _ time.Time) ([]domain.Bet, error) {
	return nil, nil
}

type fakeSubmitter struct {
	calls int
	err   error
}

func (f *fakeSubmitter) SubmitBet(_ context.Context, _ domain.BetRequest, clientRef string) (domain.BetReceipt, error) {
	f.calls++
	if f.err != nil {
		return domain.BetReceipt{}, f.err
	}
	return domain.BetReceipt{
		ExternalID: "ext-" + clientRef[:8],
		Status:     domain.BetStatusOpen,
		PlacedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type memLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		m.released = append(m.released, key)
	}, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streams: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamTail(context.Context, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memBalances struct {
	vals map[string]domain.Balance
	sets int
}

func (m *memBalances) Get(_ context.Context, bookmaker string) (domain.Balance, error) {
	b, ok := m.vals[bookmaker]
	if !ok {
		return domain.Balance{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBalances) Set(_ context.Context, bal domain.Balance, _ time.Duration) error {
	if m.vals == nil {
		m.vals = map[string]domain.Balance{}
	}
	m.sets++
	m.vals[bal.Bookmaker] = bal
	return nil
}

type fakeFetcher struct {
	bal   domain.Balance
	err   error
	calls int
}

func (f *fakeFetcher) GetBalance(_ context.Context, key string) (domain.Balance, error) {
	f.calls++
	if f.err != nil {
		return domain.Balance{}, f.err
	}
	b := f.bal
	b.Bookmaker = key
	return b, nil
}

type memSnapshots struct {
	docs map[string]any
}

func (m *memSnapshots) Put(_ context.Context, key string, v any, _ time.Duration) error {
	if m.docs == nil {
		m.docs = map[string]any{}
	}
	m.docs[key] = v
	return nil
}

func (m *memSnapshots) Fetch(_ context.Context, key string, out any) error {
	v, ok := m.docs[key]
	if !ok {
		return domain.ErrNotFound
	}
	switch dst := out.(type) {
	case *domain.BetSummary:
		*dst = v.(domain.BetSummary)
	case *[]domain.Fixture:
		*dst = v.([]domain.Fixture)
	}
	return nil
}

type fakeFixtures struct {
	list []domain.Fixture
	err  error
}

func (f fakeFixtures) Fixtures(context.Context) ([]domain.Fixture, error) { return f.list, f.err }

type memPresets struct {
	presets map[int64]domain.Preset
}

func (m memPresets) Get(_ context.Context, id int64) (domain.Preset, error) {
	p, ok := m.presets[id]
	if !ok {
		return domain.Preset{}, domain.ErrNotFound
	}
	return p, nil
}

func (m memPresets) List(_ context.Context, activeOnly bool) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range m.presets {
		if !activeOnly || p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPresets) Save(_ context.Context, p domain.Preset) (int64, error) {
	m.presets[p.ID] = p
	return p.ID, nil
}

type memHidden struct {
	mu     sync.Mutex
	items  []domain.HiddenItem
	purged int
	purgeN int64
}

func (m *memHidden) Record(_ context.Context, item domain.HiddenItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *memHidden) ListActive(_ context.Context, presetID int64, now time.Time) ([]domain.HiddenItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HiddenItem
	for _, it := range m.items {
		if it.PresetID == presetID && it.ExpiryAt.After(now) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memHidden) PurgeExpired(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged++
	return m.purgeN, nil
}

type fakePersister struct {
	mu    sync.Mutex
	items []domain.HiddenItem
	err   error
}

func (f *fakePersister) HideItem(_ context.Context, presetID int64, item domain.HiddenItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.PresetID = presetID
	f.items = append(f.items, item)
	return f.err
}
