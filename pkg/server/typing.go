package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

// StartUDP starts the UDP typing-indicator loop.
func (s *Server) StartUDP() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.UDPAddr)
	if err != nil {
		return fmt.Errorf("server: resolve udp addr: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("server: listen udp: %w", err)
	}
	s.udpConn = conn
	s.router.udpConn = conn

	if err := conn.SetReadBuffer(1024 * 1024); err != nil {
		slog.Warn("failed to set UDP read buffer", "err", err)
	}

	slog.Info("typing plane listening", "addr", s.cfg.UDPAddr)

	go s.typingLoop()
	return nil
}

// typingLoop reads typing datagrams and fans them out to every registered
// UDP return address except the sender's. Datagrams are handled inline;
// there is no per-datagram goroutine.
func (s *Server) typingLoop() {
	buf := make([]byte, protocol.MaxFrameSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = s.udpConn.SetReadDeadline(time.Now().Add(s.cfg.PollInterval))
		n, remote, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("udp read error", "err", err)
			continue
		}
		s.metrics.BytesReceived.Add(int64(n))

		msg, err := protocol.DecodeBytes(buf[:n])
		if err != nil || msg.Kind != model.KindTyping {
			s.metrics.DatagramsDropped.Add(1)
			continue
		}

		// Only usernames with a live TCP session may register a UDP
		// return address or join the typing fan-out.
		sess, ok := s.registry.GetByUsername(msg.Sender)
		if !ok {
			s.metrics.DatagramsDropped.Add(1)
			continue
		}

		// The first datagram binds the return address; later datagrams
		// from a different source are dropped.
		bound := sess.setUDPAddr(remote)
		if !udpAddrEqual(bound, remote) {
			s.metrics.DatagramsDropped.Add(1)
			continue
		}

		sess.Touch()
		s.metrics.TypingIn.Add(1)
		s.router.BroadcastUDP(msg, remote)
	}
}
