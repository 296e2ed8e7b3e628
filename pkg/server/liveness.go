package server

import (
	"log/slog"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

// staleMultiplier is how many heartbeat intervals a session may stay
// silent before it is pinged.
const staleMultiplier = 3

// livenessLoop periodically pings idle sessions and evicts the ones whose
// socket is already broken. The policy is soft: a stale session that
// accepts the ping is left alone until a later sweep finds its send
// failing; there is no ACK round-trip wait.
func (s *Server) livenessLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle(staleMultiplier * s.cfg.HeartbeatInterval)
		}
	}
}

// sweepIdle pings every session idle longer than cutoff and evicts those
// whose ping cannot be sent.
func (s *Server) sweepIdle(cutoff time.Duration) {
	ping := protocol.EncodeBytes(model.Message{
		Kind:    model.KindHeartbeat,
		Sender:  model.ServerSender,
		Content: "PING",
	})

	for _, sess := range s.registry.Snapshot() {
		if time.Since(sess.LastActive()) <= cutoff {
			continue
		}
		s.metrics.HeartbeatsSent.Add(1)
		if n, err := sess.Send(ping); err != nil {
			s.evict(sess)
		} else {
			s.metrics.BytesSent.Add(int64(n))
		}
	}
}

// evict removes a dead session and announces the departure. Removal is the
// arbiter against the handler's own teardown, so the LEAVE broadcast fires
// exactly once.
func (s *Server) evict(sess *Session) {
	if _, ok := s.registry.Remove(sess.ID); !ok {
		return
	}
	s.rooms.Leave(sess.ID)
	_ = sess.Close()

	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)
	s.metrics.Evictions.Add(1)
	slog.Info("removed inactive client", "user", sess.Username)

	s.router.BroadcastTCP(model.Message{
		Kind:    model.KindLeave,
		Sender:  model.ServerSender,
		Content: sess.Username + " has been disconnected (timeout)",
	}, "", "")
}
