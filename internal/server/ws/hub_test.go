package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

type chanBus struct {
	mu    sync.Mutex
	subs  map[string]chan []byte
	bets  []domain.StreamMessage
	ready chan struct{}
}

func newChanBus() *chanBus {
	return &chanBus{subs: map[string]chan []byte{}, ready: make(chan struct{})}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 8)
	b.subs[channel] = ch
	if len(b.subs) == len(Channels) {
		close(b.ready)
	}
	return ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamTail(_ context.Context, stream string, _ int) ([]domain.StreamMessage, error) {
	if stream != domain.StreamBets {
		return nil, nil
	}
	return b.bets, nil
}

type staticSnap struct{}

func (staticSnap) Status() domain.DashboardStatus {
	return domain.DashboardStatus{Mode: "dashboard", PresetID: 3, FeedState: domain.ConnConnected}
}

func (staticSnap) Feed() domain.FeedSnapshot {
	return domain.FeedSnapshot{PresetID: 3, Rows: []domain.FeedRow{{Opportunity: domain.Opportunity{EventID: "E1"}}}}
}

func startHub(t *testing.T, bus *chanBus) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(bus, staticSnap{}, nil, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	select {
	case <-bus.ready:
	case <-time.After(time.Second):
		t.Fatal("hub did not subscribe")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHub_InitialSnapshotAndReplay(t *testing.T) {
	bus := newChanBus()
	bus.bets = []domain.StreamMessage{{ID: "1-0", Payload: []byte(`{"id":1}`)}, {ID: "2-0", Payload: []byte(`{"id":2}`)}}
	_, conn := startHub(t, bus)

	f := readFrame(t, conn)
	assert.Equal(t, domain.ChannelStatus, f.Type)
	var st domain.DashboardStatus
	require.NoError(t, json.Unmarshal(f.Data, &st))
	assert.Equal(t, int64(3), st.PresetID)

	f = readFrame(t, conn)
	assert.Equal(t, domain.ChannelFeed, f.Type)

	f = readFrame(t, conn)
	assert.Equal(t, domain.ChannelBets, f.Type)
	assert.JSONEq(t, `{"id":1}`, string(f.Data))
	f = readFrame(t, conn)
	assert.JSONEq(t, `{"id":2}`, string(f.Data))
}

func TestHub_BroadcastAndUnsubscribe(t *testing.T) {
	bus := newChanBus()
	hub, conn := startHub(t, bus)
	readFrame(t, conn)
	readFrame(t, conn)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.ChannelStats, []byte(`{"total_bets":4}`)))
	f := readFrame(t, conn)
	assert.Equal(t, domain.ChannelStats, f.Type)
	assert.JSONEq(t, `{"total_bets":4}`, string(f.Data))

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelStats}}))
	// Wait for the unsubscribe to land before publishing.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			if c.isSubscribed(domain.ChannelStats) {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.ChannelStats, []byte(`{"total_bets":5}`)))
	require.NoError(t, bus.Publish(context.Background(), domain.ChannelBets, []byte(`{"id":9}`)))
	f = readFrame(t, conn)
	assert.Equal(t, domain.ChannelBets, f.Type)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	bus := newChanBus()
	hub, conn := startHub(t, bus)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEncodeFrame(t *testing.T) {
	var f Frame
	require.NoError(t, json.Unmarshal(encodeFrame("feed", []byte(`{"rows":[]}`)), &f))
	assert.JSONEq(t, `{"rows":[]}`, string(f.Data))

	require.NoError(t, json.Unmarshal(encodeFrame("status", []byte("not json")), &f))
	assert.Equal(t, `"not json"`, string(f.Data))
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://a"))
	assert.True(t, originAllowed([]string{"https://a"}, ""))
	assert.True(t, originAllowed([]string{"HTTPS://A"}, "https://a"))
	assert.False(t, originAllowed([]string{"https://a"}, "https://b"))
}
