package registry

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/wardctl/internal/protocol"
	"github.com/danmuck/wardctl/internal/testutil/testlog"
)

func TestSweepEvictsIdleSessions(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	idleHandle := &stubHandle{}
	reg.Register("ward1", protocol.RoleAgent, idleHandle)
	reg.Register("overseer", protocol.RoleController, &stubHandle{})

	current = base.Add(60 * time.Second)
	reg.Touch("overseer")

	sw := NewSweeper(SweeperConfig{Interval: time.Minute, ExpireAfter: 150 * time.Second}, reg)
	sw.now = func() time.Time { return current }
	var evicted []Summary
	sw.OnEvict(func(s Summary) { evicted = append(evicted, s) })

	current = base.Add(151 * time.Second)
	sw.sweep()

	if _, ok := reg.Get("ward1"); ok {
		t.Fatal("expected idle agent evicted")
	}
	if _, ok := reg.Get("overseer"); !ok {
		t.Fatal("expected touched controller to survive")
	}
	if len(evicted) != 1 || evicted[0].ID != "ward1" {
		t.Fatalf("unexpected evictions: %+v", evicted)
	}
	if idleHandle.wasClosed() {
		t.Fatal("eviction must not close the session handle")
	}
}

func TestSweepSparesSessionInsideWindow(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})

	sw := NewSweeper(SweeperConfig{Interval: time.Minute, ExpireAfter: 150 * time.Second}, reg)
	sw.now = func() time.Time { return current }

	current = base.Add(150 * time.Second)
	sw.sweep()

	if _, ok := reg.Get("ward1"); !ok {
		t.Fatal("session exactly at the threshold must survive")
	}
}

func TestSweepRacingTouchKeepsSession(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})

	current = base.Add(200 * time.Second)
	cutoff := current.Add(-150 * time.Second)

	// A heartbeat landing between the sweep snapshot and its removal
	// pass must win over the eviction.
	reg.Touch("ward1")
	if _, ok := reg.removeIfIdleSince("ward1", cutoff); ok {
		t.Fatal("refreshed session must not be removed")
	}
	if _, ok := reg.Get("ward1"); !ok {
		t.Fatal("expected session to remain registered")
	}
}

func TestSweeperConfigNormalization(t *testing.T) {
	testlog.Start(t)

	sw := NewSweeper(SweeperConfig{}, NewRegistry())
	def := DefaultSweeperConfig()
	if sw.cfg.Interval != def.Interval || sw.cfg.ExpireAfter != def.ExpireAfter {
		t.Fatalf("expected defaults for zero config, got %+v", sw.cfg)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	sw := NewSweeper(SweeperConfig{Interval: 5 * time.Millisecond, ExpireAfter: time.Second}, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
