package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/wardctl/internal/protocol"
)

type ServiceConfig struct {
	ID          string      `toml:"id"`
	ListenAddr  string      `toml:"listen_addr"`
	CorsOrigins []string    `toml:"cors_origins"`
	Auth        AuthConfig  `toml:"auth"`
	Relay       RelayConfig `toml:"relay"`
	Sweep       SweepConfig `toml:"sweep"`
}

type AuthConfig struct {
	Secret                  string       `toml:"secret"`
	AgentTokenTTLHours      int          `toml:"agent_token_ttl_hours"`
	ControllerTokenTTLHours int          `toml:"controller_token_ttl_hours"`
	RevokedPruneMinutes     int          `toml:"revoked_prune_minutes"`
	Users                   []UserConfig `toml:"users"`
}

// UserConfig provisions one login. Exactly one of password or
// password_hash must be set; plain passwords are hashed at startup and
// never kept around.
type UserConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"`
}

type RelayConfig struct {
	HandshakeTimeoutSeconds int      `toml:"handshake_timeout_seconds"`
	WriteTimeoutSeconds     int      `toml:"write_timeout_seconds"`
	SendQueueDepth          int      `toml:"send_queue_depth"`
	MaxFrameBytes           int64    `toml:"max_frame_bytes"`
	AllowedOrigins          []string `toml:"allowed_origins"`
	DataKinds               []string `toml:"data_kinds"`
}

type SweepConfig struct {
	IntervalSeconds    int `toml:"interval_seconds"`
	ExpireAfterSeconds int `toml:"expire_after_seconds"`
}

func (c AuthConfig) AgentTokenTTL() time.Duration {
	return time.Duration(c.AgentTokenTTLHours) * time.Hour
}

func (c AuthConfig) ControllerTokenTTL() time.Duration {
	return time.Duration(c.ControllerTokenTTLHours) * time.Hour
}

func (c AuthConfig) RevokedPruneEvery() time.Duration {
	return time.Duration(c.RevokedPruneMinutes) * time.Minute
}

func (c RelayConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func (c RelayConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SweepConfig) ExpireAfter() time.Duration {
	return time.Duration(c.ExpireAfterSeconds) * time.Second
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:          "wardd.local",
		ListenAddr:  ":8000",
		CorsOrigins: []string{"*"},
		Auth: AuthConfig{
			AgentTokenTTLHours:      168,
			ControllerTokenTTLHours: 12,
			RevokedPruneMinutes:     60,
		},
		Relay: RelayConfig{
			HandshakeTimeoutSeconds: 10,
			WriteTimeoutSeconds:     10,
			SendQueueDepth:          256,
			MaxFrameBytes:           1 << 20,
			AllowedOrigins:          []string{"*"},
			DataKinds:               protocol.DefaultDataKinds(),
		},
		Sweep: SweepConfig{
			IntervalSeconds:    120,
			ExpireAfterSeconds: 150,
		},
	}
}

// LoadServiceConfig reads path over the defaults, so a partial file only
// needs the keys it changes.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServiceConfig{}, err
	}
	if err := ValidateServiceConfig(cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServiceConfig(cfg ServiceConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("service config missing id")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("service config missing listen_addr")
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return fmt.Errorf("service config missing auth.secret")
	}
	if cfg.Relay.SendQueueDepth <= 0 {
		return fmt.Errorf("relay.send_queue_depth must be positive")
	}
	if cfg.Relay.MaxFrameBytes <= 0 {
		return fmt.Errorf("relay.max_frame_bytes must be positive")
	}
	if cfg.Relay.HandshakeTimeoutSeconds <= 0 {
		return fmt.Errorf("relay.handshake_timeout_seconds must be positive")
	}
	if cfg.Relay.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("relay.write_timeout_seconds must be positive")
	}
	if cfg.Sweep.IntervalSeconds <= 0 {
		return fmt.Errorf("sweep.interval_seconds must be positive")
	}
	if cfg.Sweep.ExpireAfterSeconds <= cfg.Sweep.IntervalSeconds {
		return fmt.Errorf("sweep.expire_after_seconds must exceed sweep.interval_seconds")
	}
	for i, user := range cfg.Auth.Users {
		if err := ValidateUserEntry(user); err != nil {
			return fmt.Errorf("auth.users[%d] invalid: %w", i, err)
		}
	}
	return nil
}

func ValidateUserEntry(cfg UserConfig) error {
	if strings.TrimSpace(cfg.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if _, err := protocol.ParseRole(cfg.Role); err != nil {
		return fmt.Errorf("role %q is not controller or agent", cfg.Role)
	}
	if strings.TrimSpace(cfg.Password) == "" && strings.TrimSpace(cfg.PasswordHash) == "" {
		return fmt.Errorf("password or password_hash is required")
	}
	return nil
}
