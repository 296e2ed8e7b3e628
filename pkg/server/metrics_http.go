package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP chatroom_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE chatroom_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "chatroom_uptime_seconds %f\n", uptime)

	write("chatroom_connections_active", "Current authenticated sessions.", "gauge",
		m.ActiveConnections.Load())
	write("chatroom_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("chatroom_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())
	write("chatroom_evictions_total", "Sessions evicted by the liveness monitor.", "counter",
		m.Evictions.Load())

	write("chatroom_auth_success_total", "Successful authentications.", "counter",
		m.SuccessfulAuths.Load())
	write("chatroom_auth_failed_total", "Failed authentication attempts.", "counter",
		m.FailedAuths.Load())
	write("chatroom_registrations_total", "New accounts created.", "counter",
		m.Registrations.Load())

	write("chatroom_messages_total", "Chat messages relayed.", "counter",
		m.MessagesProcessed.Load())
	write("chatroom_bytes_sent_total", "Payload bytes written on both transports.", "counter",
		m.BytesSent.Load())
	write("chatroom_bytes_received_total", "Payload bytes read on both transports.", "counter",
		m.BytesReceived.Load())

	write("chatroom_heartbeats_total", "Liveness pings sent.", "counter",
		m.HeartbeatsSent.Load())
	write("chatroom_typing_in_total", "Typing datagrams received.", "counter",
		m.TypingIn.Load())
	write("chatroom_typing_out_total", "Typing datagrams forwarded.", "counter",
		m.TypingOut.Load())
	write("chatroom_datagrams_dropped_total", "Malformed or unattributable datagrams.", "counter",
		m.DatagramsDropped.Load())
}
