package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

// StartTCP starts the TCP listener and accept loop.
func (s *Server) StartTCP() error {
	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("server: listen tcp: %w", err)
	}
	s.tcpLn = ln
	slog.Info("chat plane listening", "addr", s.cfg.TCPAddr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(conn)
		}
	}()

	return nil
}

// handleConn owns one client connection for its lifetime: auth phase,
// steady-state dispatch, then teardown. No error escapes to the acceptor.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	s.metrics.TotalConnections.Add(1)
	slog.Debug("new connection", "remote", remote)

	sess, err := s.authenticate(conn)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			slog.Info("connection rejected", "remote", remote)
		} else {
			slog.Debug("unauthenticated disconnect", "remote", remote)
		}
		return
	}

	s.metrics.SuccessfulAuths.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Info("client authenticated", "user", sess.Username, "remote", remote)

	defer func() {
		s.rooms.Leave(sess.ID)
		// The liveness monitor may have evicted us already; only the
		// goroutine that wins the removal announces the departure.
		if _, ok := s.registry.Remove(sess.ID); ok {
			s.metrics.ActiveConnections.Add(-1)
			s.metrics.TotalDisconnects.Add(1)
			s.router.BroadcastTCP(model.Message{
				Kind:    model.KindLeave,
				Sender:  model.ServerSender,
				Content: sess.Username + " has left the chat",
			}, "", "")
			slog.Info("client disconnected", "user", sess.Username)
		}
	}()

	s.router.BroadcastTCP(model.Message{
		Kind:    model.KindJoin,
		Sender:  model.ServerSender,
		Content: sess.Username + " has joined the chat",
	}, sess.ID, "")

	s.readLoop(sess)
}

// readLoop is the steady-state per-connection loop. Reads poll on a short
// deadline so shutdown is observed promptly.
func (s *Server) readLoop(sess *Session) {
	buf := make([]byte, protocol.MaxFrameSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = sess.conn.SetReadDeadline(time.Now().Add(s.cfg.PollInterval))
		n, err := sess.conn.Read(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("read error", "user", sess.Username, "err", err)
			return
		}
		if n == 0 {
			return
		}
		s.metrics.BytesReceived.Add(int64(n))

		msg, err := protocol.DecodeBytes(buf[:n])
		if err != nil {
			continue // malformed frame: drop, never fatal
		}
		sess.Touch()
		s.dispatch(sess, msg)
	}
}

// dispatch routes one inbound frame by kind. Unrecognized kinds are
// dropped silently.
func (s *Server) dispatch(sess *Session, msg model.Message) {
	switch msg.Kind {
	case model.KindChat:
		s.metrics.MessagesProcessed.Add(1)
		// No self-delivery: the sender echoes locally.
		s.router.BroadcastTCP(msg, sess.ID, s.rooms.RoomOf(sess.ID))

	case model.KindHeartbeat:
		ack := model.Message{Kind: model.KindHeartbeat, Sender: model.ServerSender, Content: "ACK"}
		if err := s.router.Unicast(sess, ack); err != nil {
			slog.Debug("heartbeat ack failed", "user", sess.Username, "err", err)
		}

	case model.KindTyping:
		// Typing indicators ride UDP even when the client sent them
		// over TCP, to keep them off the chat stream.
		s.router.BroadcastUDP(model.Message{
			Kind:   model.KindTyping,
			Sender: sess.Username,
		}, sess.UDPAddr())
	}
}
