package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current authenticated sessions
	SuccessfulAuths   atomic.Int64 // successful authentications
	FailedAuths       atomic.Int64 // failed authentication attempts
	Registrations     atomic.Int64 // new accounts created
	TotalDisconnects  atomic.Int64 // client disconnects (clean + unclean)
	Evictions         atomic.Int64 // sessions removed by the liveness monitor

	// Traffic counters
	MessagesProcessed atomic.Int64 // chat messages relayed
	BytesSent         atomic.Int64 // payload bytes written, both transports
	BytesReceived     atomic.Int64 // payload bytes read, both transports
	HeartbeatsSent    atomic.Int64 // liveness pings sent
	TypingIn          atomic.Int64 // typing datagrams received
	TypingOut         atomic.Int64 // typing datagrams forwarded
	DatagramsDropped  atomic.Int64 // malformed or unattributable datagrams
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	Registrations     int64 `json:"registrations"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	Evictions         int64 `json:"evictions"`

	MessagesProcessed int64 `json:"messages_processed"`
	BytesSent         int64 `json:"bytes_sent"`
	BytesReceived     int64 `json:"bytes_received"`
	HeartbeatsSent    int64 `json:"heartbeats_sent"`
	TypingIn          int64 `json:"typing_in"`
	TypingOut         int64 `json:"typing_out"`
	DatagramsDropped  int64 `json:"datagrams_dropped"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		Registrations:     m.Registrations.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		Evictions:         m.Evictions.Load(),
		MessagesProcessed: m.MessagesProcessed.Load(),
		BytesSent:         m.BytesSent.Load(),
		BytesReceived:     m.BytesReceived.Load(),
		HeartbeatsSent:    m.HeartbeatsSent.Load(),
		TypingIn:          m.TypingIn.Load(),
		TypingOut:         m.TypingOut.Load(),
		DatagramsDropped:  m.DatagramsDropped.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"messages", s.MessagesProcessed,
		"bytes_sent", s.BytesSent,
		"bytes_received", s.BytesReceived,
		"evictions", s.Evictions,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
