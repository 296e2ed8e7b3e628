package server

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

var (
	// ErrAuthRejected means the connection exhausted its attempts or the
	// auth phase otherwise ended in a terminal AUTH_FAIL.
	ErrAuthRejected = errors.New("server: authentication rejected")

	// ErrAuthAborted means the peer went away or timed out during the
	// auth phase; no further messages are sent.
	ErrAuthAborted = errors.New("server: authentication aborted")
)

// authenticate drives a newly accepted connection from unauthenticated to
// a registered session or a terminal failure. On success the session is in
// the registry, the read deadline is cleared, and AUTH_SUCCESS has been
// sent; the JOIN broadcast is the caller's job.
func (s *Server) authenticate(conn net.Conn) (*Session, error) {
	buf := make([]byte, protocol.MaxFrameSize)
	attempts := 0

	for attempts < s.cfg.MaxAuthAttempts {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout))
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			// Timeout or disconnect before authenticating: no reply.
			return nil, ErrAuthAborted
		}
		s.metrics.BytesReceived.Add(int64(n))

		msg, err := protocol.DecodeBytes(buf[:n])
		if err != nil || msg.Kind != model.KindAuth {
			s.authFail(conn, "authentication required")
			attempts++
			continue
		}

		username, secret := msg.Sender, msg.Content
		if err := model.ValidateUsername(username); err != nil {
			s.authFail(conn, "invalid username: "+err.Error())
			attempts++
			continue
		}

		if msg.Registration {
			created, err := s.store.Create(s.ctx, username, secret)
			if err != nil {
				slog.Error("credential store unavailable", "op", "create", "err", err)
				s.authFail(conn, "authentication unavailable")
				attempts++
				continue
			}
			if !created {
				s.authFail(conn, "username already exists")
				attempts++
				continue
			}
			s.metrics.Registrations.Add(1)
			slog.Info("new user registered", "user", username)
		} else {
			ok, err := s.store.Verify(s.ctx, username, secret)
			if err != nil {
				slog.Error("credential store unavailable", "op", "verify", "err", err)
				s.authFail(conn, "authentication unavailable")
				attempts++
				continue
			}
			if !ok {
				s.authFail(conn, "invalid credentials")
				attempts++
				continue
			}
		}

		sess := newSession(conn, username)
		if err := s.registry.Register(sess); err != nil {
			// A live session already holds this username.
			s.authFail(conn, "already connected")
			attempts++
			continue
		}

		_ = conn.SetReadDeadline(time.Time{}) // clear deadline
		welcome := model.Message{
			Kind:    model.KindAuthSuccess,
			Sender:  model.ServerSender,
			Content: "Welcome, " + username + "!",
		}
		if err := s.router.Unicast(sess, welcome); err != nil {
			s.registry.Remove(sess.ID)
			return nil, ErrAuthAborted
		}
		return sess, nil
	}

	s.authFail(conn, "authentication failed after multiple attempts")
	return nil, ErrAuthRejected
}

// authFail reports one failed attempt to the client.
func (s *Server) authFail(conn net.Conn, reason string) {
	s.metrics.FailedAuths.Add(1)
	frame := protocol.EncodeBytes(model.Message{
		Kind:    model.KindAuthFail,
		Sender:  model.ServerSender,
		Content: reason,
	})
	if n, err := conn.Write(frame); err == nil {
		s.metrics.BytesSent.Add(int64(n))
	}
}
