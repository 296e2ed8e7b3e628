package server

import (
	"strings"
	"testing"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
)

func newTestConsole(t *testing.T, srv *Server) (*Console, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	return NewConsole(srv, strings.NewReader(""), &out), &out
}

func TestConsoleUsers(t *testing.T) {
	srv := newTestServer(t)
	addSession(t, srv, "alice")
	sess, _ := addSession(t, srv, "bob")
	srv.rooms.Join(sess.ID, "lobby")

	console, out := newTestConsole(t, srv)
	console.Execute("users")

	got := out.String()
	if !strings.Contains(got, "Connected users (2)") {
		t.Fatalf("missing header in %q", got)
	}
	if !strings.Contains(got, "alice") || !strings.Contains(got, "bob") {
		t.Fatalf("missing usernames in %q", got)
	}
	if !strings.Contains(got, "[room lobby]") {
		t.Fatalf("missing room annotation in %q", got)
	}
}

func TestConsoleStats(t *testing.T) {
	srv := newTestServer(t)
	srv.metrics.MessagesProcessed.Add(7)

	console, out := newTestConsole(t, srv)
	console.Execute("stats")

	got := out.String()
	for _, want := range []string{"Server uptime:", "Active connections: 0", "Messages processed: 7"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats output missing %q: %q", want, got)
		}
	}
}

func TestConsoleBroadcast(t *testing.T) {
	srv := newTestServer(t)
	_, conn := addSession(t, srv, "alice")

	console, out := newTestConsole(t, srv)
	console.Execute("broadcast maintenance at noon")

	msgs := conn.frames(t)
	if len(msgs) != 1 {
		t.Fatalf("frames: %v", msgs)
	}
	if msgs[0].Kind != model.KindServerNotification || msgs[0].Content != "maintenance at noon" {
		t.Fatalf("broadcast frame: %+v", msgs[0])
	}
	if !strings.Contains(out.String(), "Broadcast sent") {
		t.Fatalf("console output: %q", out.String())
	}
}

func TestConsoleShutdown(t *testing.T) {
	srv := newTestServer(t)
	_, conn := addSession(t, srv, "alice")

	console, _ := newTestConsole(t, srv)
	console.Execute("shutdown")

	select {
	case <-srv.ctx.Done():
	default:
		t.Fatal("shutdown did not cancel the server context")
	}
	if got := conn.countKind(t, model.KindServerNotification); got != 1 {
		t.Fatalf("shutdown notifications: %d", got)
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Fatal("session conn left open after shutdown")
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	srv := newTestServer(t)
	console, out := newTestConsole(t, srv)

	console.Execute("frobnicate")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Fatalf("output: %q", out.String())
	}

	out.Reset()
	console.Execute("   ")
	if out.String() != "" {
		t.Fatalf("blank line produced output: %q", out.String())
	}
}
