package server

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
)

// Run starts the server and blocks until a shutdown signal or an operator
// shutdown command.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing credential store dependency")
	}
	defer func() { _ = s.store.Close() }()

	if err := s.StartTCP(); err != nil {
		return err
	}
	if err := s.StartUDP(); err != nil {
		return err
	}

	slog.Info("chat server running",
		"tcp", s.cfg.TCPAddr,
		"udp", s.cfg.UDPAddr,
	)

	s.StartMetricsHTTP()
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	go s.livenessLoop()

	if s.cfg.Console {
		go NewConsole(s, os.Stdin, os.Stdout).Run(s.ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutdown signal received")
	case <-s.ctx.Done():
	}

	s.Shutdown()
	return nil
}

// Shutdown stops the server: one SERVER_NOTIFICATION broadcast, then both
// listening sockets and every session handle are closed. Handlers observe
// the cancelled context at their next poll; shutdown is best effort and
// does not wait for them.
func (s *Server) Shutdown() {
	s.shutdown.Do(func() {
		slog.Info("shutting down...")

		s.router.BroadcastTCP(model.Message{
			Kind:    model.KindServerNotification,
			Sender:  model.ServerSender,
			Content: "Server is shutting down",
		}, "", "")

		s.cancel()

		if s.tcpLn != nil {
			_ = s.tcpLn.Close()
		}
		if s.udpConn != nil {
			_ = s.udpConn.Close()
		}
		for _, sess := range s.registry.Snapshot() {
			_ = sess.Close()
		}
	})
}
