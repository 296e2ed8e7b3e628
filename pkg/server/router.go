package server

import (
	"log/slog"
	"net"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

// Router fans out messages over the two transports. It never mutates the
// registry: recipients that fail a write are left for their handler or the
// liveness monitor to reap.
type Router struct {
	registry *SessionRegistry
	rooms    *RoomManager
	metrics  *Metrics

	// udpConn is the server's UDP socket, shared with the typing loop.
	// WriteToUDP is safe for concurrent use.
	udpConn *net.UDPConn
}

func newRouter(registry *SessionRegistry, rooms *RoomManager, metrics *Metrics) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		metrics:  metrics,
	}
}

// BroadcastTCP sends msg to every live session, skipping excludeID if
// nonempty. A nonempty room restricts delivery to that room's members.
// The message is encoded once; each write is independent and a failure on
// one session never aborts delivery to the rest.
func (rt *Router) BroadcastTCP(msg model.Message, excludeID, room string) {
	frame := protocol.EncodeBytes(msg)

	for _, sess := range rt.registry.Snapshot() {
		if sess.ID == excludeID {
			continue
		}
		if room != "" && rt.rooms.RoomOf(sess.ID) != room {
			continue
		}
		n, err := sess.Send(frame)
		if err != nil {
			slog.Error("broadcast write failed", "user", sess.Username, "err", err)
			continue
		}
		rt.metrics.BytesSent.Add(int64(n))
	}
}

// BroadcastUDP sends one datagram per registered UDP return address,
// skipping exclude if given. Send failures are logged and ignored; the
// transport already drops silently.
func (rt *Router) BroadcastUDP(msg model.Message, exclude *net.UDPAddr) {
	if rt.udpConn == nil {
		return
	}
	frame := protocol.EncodeBytes(msg)

	for _, addr := range rt.registry.UDPTargets() {
		if exclude != nil && udpAddrEqual(addr, exclude) {
			continue
		}
		n, err := rt.udpConn.WriteToUDP(frame, addr)
		if err != nil {
			slog.Debug("typing send failed", "target", addr, "err", err)
			continue
		}
		rt.metrics.TypingOut.Add(1)
		rt.metrics.BytesSent.Add(int64(n))
	}
}

// Unicast sends msg to a single session.
func (rt *Router) Unicast(sess *Session, msg model.Message) error {
	n, err := sess.Send(protocol.EncodeBytes(msg))
	if err != nil {
		return err
	}
	rt.metrics.BytesSent.Add(int64(n))
	return nil
}

func udpAddrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
