package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SweeperConfig controls the idle-session eviction cycle.
type SweeperConfig struct {
	Interval    time.Duration
	ExpireAfter time.Duration
}

// DefaultSweeperConfig sweeps every two minutes and evicts sessions
// silent for longer than two and a half.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:    120 * time.Second,
		ExpireAfter: 150 * time.Second,
	}
}

// Sweeper periodically evicts sessions whose activity timestamp has gone
// stale. Eviction only drops the registry entry; it never closes the
// handle, so a client that stopped sending heartbeats but still holds
// its connection keeps receiving acks until the socket actually drops.
type Sweeper struct {
	cfg    SweeperConfig
	reg    *Registry
	logger zerolog.Logger

	now     func() time.Time
	onEvict func(Summary)
}

func NewSweeper(cfg SweeperConfig, reg *Registry) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = DefaultSweeperConfig().ExpireAfter
	}
	return &Sweeper{
		cfg:    cfg,
		reg:    reg,
		logger: log.With().Str("component", "sweeper").Logger(),
		now:    time.Now,
	}
}

// OnEvict installs a hook invoked once per evicted session.
func (s *Sweeper) OnEvict(fn func(Summary)) {
	s.onEvict = fn
}

// Run blocks sweeping on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	cutoff := s.now().Add(-s.cfg.ExpireAfter)
	for _, sess := range s.reg.Snapshot() {
		if !sess.LastActivity.Before(cutoff) {
			continue
		}
		evicted, ok := s.reg.removeIfIdleSince(sess.ID, cutoff)
		if !ok {
			continue
		}
		s.logger.Warn().
			Str("client_id", evicted.ID).
			Str("user_type", string(evicted.Role)).
			Time("last_activity", evicted.LastActivity).
			Msg("session_evicted")
		if s.onEvict != nil {
			s.onEvict(evicted)
		}
	}
}
