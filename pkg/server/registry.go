package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyConnected is returned by Register when the username already has
// a live session.
var ErrAlreadyConnected = errors.New("server: username already connected")

// Session represents one authenticated client. The handler goroutine owns
// conn for reading; writes go through Send, which serializes the handler's
// own replies with router broadcasts.
type Session struct {
	ID       string
	Username string
	PeerAddr string
	conn     net.Conn

	writeMu sync.Mutex

	mu         sync.Mutex
	lastActive time.Time
	udpAddr    *net.UDPAddr
}

func newSession(conn net.Conn, username string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Username:   username,
		PeerAddr:   conn.RemoteAddr().String(),
		conn:       conn,
		lastActive: time.Now(),
	}
}

// Send writes one encoded frame to the session's TCP connection. Safe for
// concurrent use by the handler and the router.
func (s *Session) Send(frame []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(frame)
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns the time of the last successfully parsed inbound frame.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// UDPAddr returns the session's registered UDP return address, or nil.
func (s *Session) UDPAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.udpAddr
}

// setUDPAddr registers addr if no address is registered yet and returns
// the address now in effect. Only the first datagram from a session binds
// the address; later datagrams from other sources are rejected upstream.
func (s *Session) setUDPAddr(addr *net.UDPAddr) *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.udpAddr == nil {
		s.udpAddr = addr
	}
	return s.udpAddr
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// SessionRegistry is the shared map of live sessions. All mutation and
// iteration goes through its lock; broadcast I/O happens on snapshots
// taken under the lock, never while holding it.
type SessionRegistry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session // sessionID -> session
	byUsername map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:   make(map[string]*Session),
		byUsername: make(map[string]*Session),
	}
}

// Register inserts a session. It fails with ErrAlreadyConnected if the
// username already has a live session; uniqueness is enforced here, at
// insertion time.
func (r *SessionRegistry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byUsername[s.Username]; taken {
		return ErrAlreadyConnected
	}
	r.sessions[s.ID] = s
	r.byUsername[s.Username] = s
	return nil
}

// Remove deletes a session by ID and reports whether it was present.
// The first caller wins; handler teardown and liveness eviction both rely
// on this to emit exactly one LEAVE.
func (r *SessionRegistry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	delete(r.byUsername, s.Username)
	return s, true
}

// Get retrieves a session by ID.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetByUsername retrieves a session by username.
func (r *SessionRegistry) GetByUsername(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUsername[username]
	return s, ok
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns all live sessions.
func (r *SessionRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// UDPTargets returns the UDP return addresses of all sessions that have
// registered one.
func (r *SessionRegistry) UDPTargets() []*net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*net.UDPAddr, 0, len(r.sessions))
	for _, s := range r.sessions {
		if addr := s.UDPAddr(); addr != nil {
			result = append(result, addr)
		}
	}
	return result
}
