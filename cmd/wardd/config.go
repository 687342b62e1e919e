package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wardctl/internal/config"
)

// wardd config.toml key mapping to relay runtime settings.
type fileConfig struct {
	ID          string          `toml:"id"`
	ListenAddr  string          `toml:"listen_addr"`
	CorsOrigins []string        `toml:"cors_origins"`
	Auth        fileAuthConfig  `toml:"auth"`
	Relay       fileRelayConfig `toml:"relay"`
	Sweep       fileSweepConfig `toml:"sweep"`
}

type fileAuthConfig struct {
	Secret                  string           `toml:"secret"`
	AgentTokenTTLHours      int              `toml:"agent_token_ttl_hours"`
	ControllerTokenTTLHours int              `toml:"controller_token_ttl_hours"`
	RevokedPruneMinutes     int              `toml:"revoked_prune_minutes"`
	Users                   []fileUserConfig `toml:"users"`
}

type fileUserConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"`
}

type fileRelayConfig struct {
	HandshakeTimeoutSeconds int      `toml:"handshake_timeout_seconds"`
	WriteTimeoutSeconds     int      `toml:"write_timeout_seconds"`
	SendQueueDepth          int      `toml:"send_queue_depth"`
	MaxFrameBytes           int64    `toml:"max_frame_bytes"`
	AllowedOrigins          []string `toml:"allowed_origins"`
	DataKinds               []string `toml:"data_kinds"`
}

type fileSweepConfig struct {
	IntervalSeconds    int `toml:"interval_seconds"`
	ExpireAfterSeconds int `toml:"expire_after_seconds"`
}

// wardd loader for TOML config with default overlay.
func loadServiceConfig(path string) (config.ServiceConfig, error) {
	cfg := config.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.ServiceConfig{}, fmt.Errorf("load wardd config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("auth", "secret") {
		cfg.Auth.Secret = strings.TrimSpace(raw.Auth.Secret)
	}
	if meta.IsDefined("auth", "agent_token_ttl_hours") {
		cfg.Auth.AgentTokenTTLHours = raw.Auth.AgentTokenTTLHours
	}
	if meta.IsDefined("auth", "controller_token_ttl_hours") {
		cfg.Auth.ControllerTokenTTLHours = raw.Auth.ControllerTokenTTLHours
	}
	if meta.IsDefined("auth", "revoked_prune_minutes") {
		cfg.Auth.RevokedPruneMinutes = raw.Auth.RevokedPruneMinutes
	}
	if meta.IsDefined("auth", "users") {
		cfg.Auth.Users = make([]config.UserConfig, 0, len(raw.Auth.Users))
		for _, user := range raw.Auth.Users {
			cfg.Auth.Users = append(cfg.Auth.Users, config.UserConfig{
				Username:     strings.TrimSpace(user.Username),
				Password:     user.Password,
				PasswordHash: user.PasswordHash,
				Role:         strings.TrimSpace(user.Role),
			})
		}
	}
	if meta.IsDefined("relay", "handshake_timeout_seconds") {
		cfg.Relay.HandshakeTimeoutSeconds = raw.Relay.HandshakeTimeoutSeconds
	}
	if meta.IsDefined("relay", "write_timeout_seconds") {
		cfg.Relay.WriteTimeoutSeconds = raw.Relay.WriteTimeoutSeconds
	}
	if meta.IsDefined("relay", "send_queue_depth") {
		cfg.Relay.SendQueueDepth = raw.Relay.SendQueueDepth
	}
	if meta.IsDefined("relay", "max_frame_bytes") {
		cfg.Relay.MaxFrameBytes = raw.Relay.MaxFrameBytes
	}
	if meta.IsDefined("relay", "allowed_origins") {
		cfg.Relay.AllowedOrigins = raw.Relay.AllowedOrigins
	}
	if meta.IsDefined("relay", "data_kinds") {
		cfg.Relay.DataKinds = raw.Relay.DataKinds
	}
	if meta.IsDefined("sweep", "interval_seconds") {
		cfg.Sweep.IntervalSeconds = raw.Sweep.IntervalSeconds
	}
	if meta.IsDefined("sweep", "expire_after_seconds") {
		cfg.Sweep.ExpireAfterSeconds = raw.Sweep.ExpireAfterSeconds
	}

	if err := config.ValidateServiceConfig(cfg); err != nil {
		return config.ServiceConfig{}, fmt.Errorf("load wardd config: %w", err)
	}
	return cfg, nil
}
