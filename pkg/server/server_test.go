package server

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/credstore"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/protocol"
)

// recordConn is a net.Conn fake that records every write.
type recordConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *recordConn) Read(_ []byte) (int, error) { return 0, net.ErrClosed }

func (c *recordConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	c.writes = append(c.writes, buf)
	return len(p), nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordConn) LocalAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *recordConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *recordConn) SetDeadline(_ time.Time) error      { return nil }
func (c *recordConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *recordConn) SetWriteDeadline(_ time.Time) error { return nil }

// frames returns everything written to the conn, decoded.
func (c *recordConn) frames(t *testing.T) []model.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]model.Message, 0, len(c.writes))
	for _, w := range c.writes {
		m, err := protocol.DecodeBytes(w)
		if err != nil {
			t.Fatalf("recorded frame %q does not decode: %v", w, err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func (c *recordConn) countKind(t *testing.T, kind model.Kind) int {
	t.Helper()
	n := 0
	for _, m := range c.frames(t) {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	cfg.PollInterval = 50 * time.Millisecond
	return New(cfg, Dependencies{Store: credstore.NewMemory(nil)})
}

// addSession registers a session backed by a recordConn.
func addSession(t *testing.T, s *Server, username string) (*Session, *recordConn) {
	t.Helper()
	conn := &recordConn{}
	sess := newSession(conn, username)
	if err := s.registry.Register(sess); err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return sess, conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// testClient drives one TCP client against a running server.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(frame string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(frame)); err != nil {
		c.t.Fatalf("send %q: %v", frame, err)
	}
}

func (c *testClient) recv() model.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.MaxFrameSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		c.t.Fatalf("recv: %v", err)
	}
	msg, err := protocol.DecodeBytes(buf[:n])
	if err != nil {
		c.t.Fatalf("recv: frame %q does not decode: %v", buf[:n], err)
	}
	return msg
}

func (c *testClient) expect(kind model.Kind) model.Message {
	c.t.Helper()
	msg := c.recv()
	if msg.Kind != kind {
		c.t.Fatalf("expected %s frame, got %s (%q)", kind, msg.Kind, protocol.Encode(msg))
	}
	return msg
}

func TestServerChatFlow(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.StartTCP(); err != nil {
		t.Fatalf("StartTCP: %v", err)
	}
	if err := srv.StartUDP(); err != nil {
		t.Fatalf("StartUDP: %v", err)
	}
	defer srv.Shutdown()
	addr := srv.tcpLn.Addr().String()

	// alice registers
	alice := dialClient(t, addr)
	alice.send("AUTH:alice:pw1:registration=true")
	alice.expect(model.KindAuthSuccess)

	// second connection: wrong password, then correct password while
	// alice is still connected
	dup := dialClient(t, addr)
	dup.send("AUTH:alice:wrong")
	if msg := dup.expect(model.KindAuthFail); !strings.Contains(msg.Content, "credentials") {
		t.Fatalf("AUTH_FAIL reason: %q", msg.Content)
	}
	dup.send("AUTH:alice:pw1")
	if msg := dup.expect(model.KindAuthFail); !strings.Contains(msg.Content, "already connected") {
		t.Fatalf("AUTH_FAIL reason: %q", msg.Content)
	}
	_ = dup.conn.Close()

	// bob joins; alice is notified, bob is not echoed his own JOIN
	bob := dialClient(t, addr)
	bob.send("AUTH:bob:pw2:registration=true")
	bob.expect(model.KindAuthSuccess)
	if msg := alice.expect(model.KindJoin); !strings.Contains(msg.Content, "bob") {
		t.Fatalf("JOIN content: %q", msg.Content)
	}

	// chat fan-out, no self-delivery: bob's next frame must be alice's
	// chat, not his own join or echo
	alice.send("CHAT:alice:hi")
	msg := bob.expect(model.KindChat)
	if msg.Sender != "alice" || msg.Content != "hi" {
		t.Fatalf("chat: got %q", protocol.Encode(msg))
	}

	// content with colons survives the relay
	bob.send("CHAT:bob:seen at 12:30: confirmed")
	msg = alice.expect(model.KindChat)
	if msg.Content != "seen at 12:30: confirmed" {
		t.Fatalf("chat content: %q", msg.Content)
	}

	// heartbeat is unicast request/ack
	alice.send("HEARTBEAT:alice:PING")
	if msg := alice.expect(model.KindHeartbeat); msg.Content != "ACK" {
		t.Fatalf("heartbeat ack: %q", msg.Content)
	}

	waitFor(t, "2 active connections", func() bool {
		return srv.metrics.ActiveConnections.Load() == 2
	})

	// shutdown notifies connected clients
	srv.Shutdown()
	if msg := alice.expect(model.KindServerNotification); !strings.Contains(msg.Content, "shutting down") {
		t.Fatalf("shutdown notification: %q", msg.Content)
	}
}

func TestServerDisconnectBroadcastsLeave(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.StartTCP(); err != nil {
		t.Fatalf("StartTCP: %v", err)
	}
	defer srv.Shutdown()
	addr := srv.tcpLn.Addr().String()

	alice := dialClient(t, addr)
	alice.send("AUTH:alice:pw1:registration=true")
	alice.expect(model.KindAuthSuccess)

	bob := dialClient(t, addr)
	bob.send("AUTH:bob:pw2:registration=true")
	bob.expect(model.KindAuthSuccess)
	alice.expect(model.KindJoin)

	_ = bob.conn.Close()
	if msg := alice.expect(model.KindLeave); !strings.Contains(msg.Content, "bob") {
		t.Fatalf("LEAVE content: %q", msg.Content)
	}

	waitFor(t, "registry drain", func() bool { return srv.registry.Count() == 1 })
}

func TestTypingIndicatorsOverUDP(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.StartTCP(); err != nil {
		t.Fatalf("StartTCP: %v", err)
	}
	if err := srv.StartUDP(); err != nil {
		t.Fatalf("StartUDP: %v", err)
	}
	defer srv.Shutdown()
	tcpAddr := srv.tcpLn.Addr().String()
	udpAddr := srv.udpConn.LocalAddr().(*net.UDPAddr)

	alice := dialClient(t, tcpAddr)
	alice.send("AUTH:alice:pw1:registration=true")
	alice.expect(model.KindAuthSuccess)

	bob := dialClient(t, tcpAddr)
	bob.send("AUTH:bob:pw2:registration=true")
	bob.expect(model.KindAuthSuccess)
	alice.expect(model.KindJoin)

	udpAlice, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer func() { _ = udpAlice.Close() }()
	udpBob, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer func() { _ = udpBob.Close() }()

	// first datagram from each client registers its return address
	if _, err := udpAlice.WriteToUDP([]byte("TYPING:alice:"), udpAddr); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	waitFor(t, "alice UDP registration", func() bool {
		return srv.metrics.TypingIn.Load() >= 1
	})

	if _, err := udpBob.WriteToUDP([]byte("TYPING:bob:"), udpAddr); err != nil {
		t.Fatalf("send typing: %v", err)
	}

	// alice hears that bob is typing
	_ = udpAlice.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.MaxFrameSize)
	n, _, err := udpAlice.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read typing: %v", err)
	}
	msg, err := protocol.DecodeBytes(buf[:n])
	if err != nil {
		t.Fatalf("typing frame %q: %v", buf[:n], err)
	}
	if msg.Kind != model.KindTyping || msg.Sender != "bob" {
		t.Fatalf("typing: got %q", protocol.Encode(msg))
	}

	// the sender's own address is excluded from the fan-out
	_ = udpBob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := udpBob.ReadFromUDP(buf); err == nil {
		t.Fatal("sender received its own typing indicator")
	}

	// datagrams from unknown usernames are dropped
	before := srv.metrics.DatagramsDropped.Load()
	if _, err := udpBob.WriteToUDP([]byte("TYPING:mallory:"), udpAddr); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	waitFor(t, "unknown sender drop", func() bool {
		return srv.metrics.DatagramsDropped.Load() > before
	})
}

func TestAttemptLimiting(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.StartTCP(); err != nil {
		t.Fatalf("StartTCP: %v", err)
	}
	defer srv.Shutdown()
	addr := srv.tcpLn.Addr().String()

	c := dialClient(t, addr)
	for i := 0; i < 3; i++ {
		c.send("AUTH:alice:wrong")
		c.expect(model.KindAuthFail)
	}
	// terminal AUTH_FAIL, then the server closes the connection
	if msg := c.expect(model.KindAuthFail); !strings.Contains(msg.Content, "multiple attempts") {
		t.Fatalf("terminal AUTH_FAIL: %q", msg.Content)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	if n, err := c.conn.Read(buf); err == nil {
		t.Fatalf("expected closed connection, read %q", buf[:n])
	}
	if srv.registry.Count() != 0 {
		t.Fatal("rejected connection ended up in the registry")
	}
}
