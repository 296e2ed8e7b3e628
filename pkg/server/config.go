package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of an optional server config file. Every
// field is optional; zero values leave the flag/default value in place.
type FileConfig struct {
	TCPAddr           string `yaml:"tcp_addr,omitempty"`
	UDPAddr           string `yaml:"udp_addr,omitempty"`
	MetricsAddr       string `yaml:"metrics_addr,omitempty"`
	DBPath            string `yaml:"db_path,omitempty"`
	AuthTimeout       string `yaml:"auth_timeout,omitempty"`        // e.g. "30s"
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`  // e.g. "10s"
	PollInterval      string `yaml:"poll_interval,omitempty"`       // e.g. "500ms"
	MaxAuthAttempts   int    `yaml:"max_auth_attempts,omitempty"`
}

// LoadConfigFile reads a YAML config file and applies its non-zero fields
// onto cfg.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if fc.TCPAddr != "" {
		cfg.TCPAddr = fc.TCPAddr
	}
	if fc.UDPAddr != "" {
		cfg.UDPAddr = fc.UDPAddr
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.MaxAuthAttempts > 0 {
		cfg.MaxAuthAttempts = fc.MaxAuthAttempts
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.AuthTimeout, "auth_timeout", &cfg.AuthTimeout},
		{fc.HeartbeatInterval, "heartbeat_interval", &cfg.HeartbeatInterval},
		{fc.PollInterval, "poll_interval", &cfg.PollInterval},
	} {
		if d.raw == "" {
			continue
		}
		dur, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", d.name, err)
		}
		*d.dst = dur
	}

	return nil
}
