package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/session"
)

const (
	// writeWait is the time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed between frames from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second
)

// FeedTransport dials the backend trade-feed WebSocket for a preset. It
// does not reconnect; the session manager owns retry policy.
type FeedTransport struct {
	wsURL  string
	apiKey string
	dialer websocket.Dialer
	logger *slog.Logger
}

var _ session.Transport = (*FeedTransport)(nil)

// NewFeedTransport creates a transport for the given WebSocket root, e.g.
// "ws://localhost:8000".
func NewFeedTransport(wsURL, apiKey string, logger *slog.Logger) *FeedTransport {
	return &FeedTransport{
		wsURL:  strings.TrimRight(wsURL, "/"),
		apiKey: apiKey,
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: logger.With(slog.String("component", "backend_ws")),
	}
}

// Dial opens the trade feed for presetID. The returned stream is closed when
// ctx is cancelled.
func (t *FeedTransport) Dial(ctx context.Context, presetID int64) (session.Stream, error) {
	endpoint := fmt.Sprintf("%s/ws/tradefeed/%d", t.wsURL, presetID)

	header := http.Header{}
	if t.apiKey != "" {
		header.Set(apiKeyHeader, t.apiKey)
	}

	conn, resp, err := t.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("backend/ws: connect %s: HTTP %d: %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("backend/ws: connect %s: %w", endpoint, err)
	}

	s := &FeedStream{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.pingLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	t.logger.DebugContext(ctx, "trade feed dialled", slog.Int64("preset_id", presetID))
	return s, nil
}

// FeedStream is one open trade-feed connection.
type FeedStream struct {
	conn *websocket.Conn
	once sync.Once
	done chan struct{}
}

// Next returns the next text frame.
func (s *FeedStream) Next(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("backend/ws: %w: %v", domain.ErrWSDisconnect, err)
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("backend/ws: %w: code %d %s", domain.ErrWSDisconnect, closeErr.Code, closeErr.Text)
			}
			return nil, fmt.Errorf("backend/ws: read: %w", err)
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close sends a close frame and releases the connection. It is safe to
// call more than once.
func (s *FeedStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = s.conn.Close()
	})
	return err
}

func (s *FeedStream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
