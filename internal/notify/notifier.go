// Package notify fans dashboard alerts out to chat channels. Each alert
// carries an event type so operators can subscribe to a subset, e.g. only
// failed hides and feed drops.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names a kind of alert.
type Event string

const (
	EventBetPlaced        Event = "bet_placed"
	EventFeedConnected    Event = "feed_connected"
	EventFeedDisconnected Event = "feed_disconnected"
	EventHideFailed       Event = "hide_failed"
)

// KnownEvents lists every event the dashboard emits.
var KnownEvents = []Event{
	EventBetPlaced,
	EventFeedConnected,
	EventFeedDisconnected,
	EventHideFailed,
}

// Sender delivers one alert to a channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Message is a rendered alert.
type Message struct {
	Event Event
	Title string
	Body  string
}

// Notifier dispatches alerts to every sender, dropping events that are not
// in the configured allow list. An empty allow list lets everything through.
// A nil *Notifier is valid and sends nothing.
type Notifier struct {
	senders []Sender
	events  map[Event]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders and event filter.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[Event(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether an event would be forwarded to any sender.
func (n *Notifier) Enabled(event Event) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify sends an alert to all senders. A failing sender does not stop
// delivery to the others; their errors are joined.
func (n *Notifier) Notify(ctx context.Context, event Event, title, body string) error {
	if !n.Enabled(event) {
		return nil
	}

	msg := Message{Event: event, Title: title, Body: body}
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", string(event)),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
