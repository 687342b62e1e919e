package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
id = "wardd.alpha"
listen_addr = "127.0.0.1:9100"

[auth]
secret = "overlay-secret"
controller_token_ttl_hours = 6

[[auth.users]]
username = "overseer"
password = "watchtower"
role = "controller"

[relay]
send_queue_depth = 64

[sweep]
interval_seconds = 30
expire_after_seconds = 45
	`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "wardd.alpha" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Auth.Secret != "overlay-secret" {
		t.Fatalf("unexpected secret: %q", cfg.Auth.Secret)
	}
	if cfg.Auth.ControllerTokenTTL() != 6*time.Hour {
		t.Fatalf("unexpected controller ttl: %v", cfg.Auth.ControllerTokenTTL())
	}
	if cfg.Auth.AgentTokenTTL() != 168*time.Hour {
		t.Fatalf("expected default agent ttl, got %v", cfg.Auth.AgentTokenTTL())
	}
	if len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Username != "overseer" {
		t.Fatalf("unexpected users: %+v", cfg.Auth.Users)
	}
	if cfg.Relay.SendQueueDepth != 64 {
		t.Fatalf("unexpected queue depth: %d", cfg.Relay.SendQueueDepth)
	}
	if cfg.Relay.WriteTimeoutSeconds != 10 {
		t.Fatalf("expected default write timeout, got %d", cfg.Relay.WriteTimeoutSeconds)
	}
	if cfg.Relay.MaxFrameBytes != 1<<20 {
		t.Fatalf("expected default frame limit, got %d", cfg.Relay.MaxFrameBytes)
	}
	if len(cfg.Relay.DataKinds) == 0 {
		t.Fatalf("expected default data kinds")
	}
	if cfg.Sweep.IntervalSeconds != 30 || cfg.Sweep.ExpireAfterSeconds != 45 {
		t.Fatalf("unexpected sweep config: %+v", cfg.Sweep)
	}
}

func TestLoadServiceConfigMinimalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
[auth]
secret = "just-a-secret"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "wardd.local" {
		t.Fatalf("unexpected default id: %q", cfg.ID)
	}
	if cfg.ListenAddr != ":8000" {
		t.Fatalf("unexpected default listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Sweep.IntervalSeconds != 120 || cfg.Sweep.ExpireAfterSeconds != 150 {
		t.Fatalf("unexpected default sweep config: %+v", cfg.Sweep)
	}
}

func TestLoadServiceConfigRejectsMissingSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
id = "wardd.alpha"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestLoadServiceConfigAppliesExplicitZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
[auth]
secret = "just-a-secret"

[relay]
send_queue_depth = 0
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected explicit zero queue depth to fail validation")
	}
}

func TestLoadServiceConfigRejectsBadUserRole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
[auth]
secret = "just-a-secret"

[[auth.users]]
username = "ward1"
password = "lantern"
role = "spectator"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected bad role error")
	}
}
