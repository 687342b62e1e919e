package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/wardctl/internal/auth"
	"github.com/danmuck/wardctl/internal/config"
	"github.com/danmuck/wardctl/internal/httpapi"
	"github.com/danmuck/wardctl/internal/observability"
	"github.com/danmuck/wardctl/internal/registry"
	"github.com/danmuck/wardctl/internal/relay"
)

func main() {
	configPath := flag.String("config", "cmd/wardd/config.toml", "path to wardd config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wardd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}

	logger := observability.InitLogger("wardd")
	observability.RegisterMetrics()

	creds, err := config.Credentials(cfg.Auth.Users)
	if err != nil {
		return err
	}
	authority, err := auth.NewAuthority(auth.Config{
		Secret:             cfg.Auth.Secret,
		AgentTokenTTL:      cfg.Auth.AgentTokenTTL(),
		ControllerTokenTTL: cfg.Auth.ControllerTokenTTL(),
		RevokedPruneEvery:  cfg.Auth.RevokedPruneEvery(),
	}, creds)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.NewRegistry()
	sweeper := registry.NewSweeper(registry.SweeperConfig{
		Interval:    cfg.Sweep.Interval(),
		ExpireAfter: cfg.Sweep.ExpireAfter(),
	}, reg)
	sweeper.OnEvict(func(s registry.Summary) {
		observability.RecordEviction(string(s.Role))
	})

	relaySvc := relay.NewService(relay.ServiceConfig{
		ID:               cfg.ID,
		HandshakeTimeout: cfg.Relay.HandshakeTimeout(),
		WriteTimeout:     cfg.Relay.WriteTimeout(),
		SendQueueDepth:   cfg.Relay.SendQueueDepth,
		MaxFrameBytes:    cfg.Relay.MaxFrameBytes,
		AllowedOrigins:   cfg.Relay.AllowedOrigins,
		DataKinds:        cfg.Relay.DataKinds,
	}, authority, reg)

	api := httpapi.NewServer(httpapi.Config{
		ID:          cfg.ID,
		CorsOrigins: cfg.CorsOrigins,
	}, authority, reg, relaySvc)

	go sweeper.Run(ctx)
	go authority.RunPruner(ctx)

	logger.Info().
		Str("id", cfg.ID).
		Str("listen_addr", cfg.ListenAddr).
		Int("users", len(creds)).
		Msg("wardd_starting")

	return api.Run(ctx, cfg.ListenAddr)
}
