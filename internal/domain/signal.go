package domain

import "time"

// ConnState is the connectivity state of the live feed session.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
)

// SessionStatus is published whenever the live session changes state.
type SessionStatus struct {
	PresetID int64     `json:"preset_id"`
	State    ConnState `json:"state"`
	Since    time.Time `json:"since"`
}

// Bus channels bridged to dashboard WebSocket clients.
const (
	ChannelFeed   = "feed"
	ChannelStatus = "status"
	ChannelStats  = "stats"
	ChannelBets   = "bets"

	StreamBets = "stream:bets"
)

// DashboardStatus is a summary of the service's current operational state.
type DashboardStatus struct {
	Mode          string    `json:"mode"`
	PresetID      int64     `json:"preset_id"`
	FeedState     ConnState `json:"feed_state"`
	FeedRows      int       `json:"feed_rows"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}
