package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/credstore"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/logging"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/server"
	"github.com/tatemouser/ChatRoomNetworkProject/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override file values)")
	flag.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "TCP bind address for auth/chat/heartbeat")
	flag.StringVar(&cfg.UDPAddr, "udp", cfg.UDPAddr, "UDP bind address for typing indicators")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite credential database path")
	flag.BoolVar(&cfg.Console, "console", true, "Run the operator console on stdin")
	plainSecrets := flag.Bool("plain-secrets", false, "Store secrets verbatim instead of Argon2id hashes (legacy credential files)")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *configFile != "" {
		if err := server.LoadConfigFile(*configFile, &cfg); err != nil {
			slog.Error("load config", "err", err)
			os.Exit(1)
		}
		// Re-apply flags so the command line wins over the file.
		flag.Parse()
	}

	var hasher credstore.Hasher = credstore.Argon2Hasher{}
	if *plainSecrets {
		hasher = credstore.PlainHasher{}
	}

	st, err := credstore.OpenSQLite(cfg.DBPath, hasher)
	if err != nil {
		slog.Error("open credential store", "err", err)
		os.Exit(1)
	}

	slog.Info("starting chat server", "version", version.Full())

	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
