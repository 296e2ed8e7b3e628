// Package server implements the chat server core: the session registry,
// the authentication state machine, TCP and UDP fan-out, and the liveness
// monitor.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/credstore"
)

// Config holds server configuration.
type Config struct {
	TCPAddr     string // TCP bind address for auth/chat/heartbeat (e.g. ":5000")
	UDPAddr     string // UDP bind address for typing indicators (e.g. ":5001")
	MetricsAddr string // HTTP bind address for /metrics endpoint (empty = disabled)
	DBPath      string // SQLite credential database path

	AuthTimeout       time.Duration // receive timeout during the auth phase
	MaxAuthAttempts   int           // failed attempts before the connection is rejected
	HeartbeatInterval time.Duration // liveness sweep period; idle cutoff is 3x this
	PollInterval      time.Duration // read-poll interval for observing shutdown

	Console bool // run the operator console on stdin
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TCPAddr:           ":5000",
		UDPAddr:           ":5001",
		MetricsAddr:       ":5002",
		DBPath:            "chat.db",
		AuthTimeout:       30 * time.Second,
		MaxAuthAttempts:   3,
		HeartbeatInterval: 10 * time.Second,
		PollInterval:      500 * time.Millisecond,
	}
}

// Dependencies holds external collaborators for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store credstore.Store
}

// Server is the chat server instance. All shared state (registry, rooms,
// metrics) is owned here and passed to components explicitly; nothing is
// process-global, so multiple servers can coexist in tests.
type Server struct {
	cfg      Config
	registry *SessionRegistry
	rooms    *RoomManager
	metrics  *Metrics
	router   *Router
	store    credstore.Store

	tcpLn   net.Listener
	udpConn *net.UDPConn

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	def := DefaultConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.MaxAuthAttempts <= 0 {
		cfg.MaxAuthAttempts = def.MaxAuthAttempts
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewSessionRegistry()
	rooms := NewRoomManager()
	metrics := NewMetrics()
	return &Server{
		cfg:      cfg,
		registry: registry,
		rooms:    rooms,
		metrics:  metrics,
		router:   newRouter(registry, rooms, metrics),
		store:    deps.Store,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *SessionRegistry { return s.registry }

// Rooms returns the room manager.
func (s *Server) Rooms() *RoomManager { return s.rooms }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Router returns the message router.
func (s *Server) Router() *Router { return s.router }
