package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/wardctl/internal/protocol"
	"github.com/danmuck/wardctl/internal/testutil/testlog"
)

type stubHandle struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (h *stubHandle) Deliver(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
	return nil
}

func (h *stubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *stubHandle) wasClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func TestRegisterAndGet(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	h := &stubHandle{}
	if displaced := reg.Register("ward1", protocol.RoleAgent, h); displaced != nil {
		t.Fatalf("expected no displacement on fresh id, got %v", displaced)
	}

	sess, ok := reg.Get("ward1")
	if !ok {
		t.Fatal("expected session for ward1")
	}
	if sess.ID != "ward1" || sess.Role != protocol.RoleAgent {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Handle != Handle(h) {
		t.Fatal("expected registered handle back")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected len 1, got %d", reg.Len())
	}

	if _, ok := reg.Get("ward2"); ok {
		t.Fatal("expected no session for unknown id")
	}
}

func TestRegisterDisplacesPreviousHandle(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	first := &stubHandle{}
	second := &stubHandle{}

	reg.Register("ward1", protocol.RoleAgent, first)
	displaced := reg.Register("ward1", protocol.RoleAgent, second)
	if displaced != Handle(first) {
		t.Fatal("expected first handle back as displaced")
	}
	if first.wasClosed() {
		t.Fatal("registry must not close displaced handles itself")
	}

	sess, ok := reg.Get("ward1")
	if !ok || sess.Handle != Handle(second) {
		t.Fatal("expected second handle to own the id")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected len 1 after displacement, got %d", reg.Len())
	}
}

func TestRemoveHandleOnlyRemovesOwner(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	first := &stubHandle{}
	second := &stubHandle{}

	reg.Register("ward1", protocol.RoleAgent, first)
	reg.Register("ward1", protocol.RoleAgent, second)

	if reg.RemoveHandle("ward1", first) {
		t.Fatal("displaced handle must not remove its successor")
	}
	if _, ok := reg.Get("ward1"); !ok {
		t.Fatal("expected session to survive stale removal")
	}

	if !reg.RemoveHandle("ward1", second) {
		t.Fatal("owner removal should succeed")
	}
	if _, ok := reg.Get("ward1"); ok {
		t.Fatal("expected session gone after owner removal")
	}
	if reg.RemoveHandle("ward1", second) {
		t.Fatal("second removal should report false")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})
	reg.Remove("ward1")
	reg.Remove("ward1")
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got len %d", reg.Len())
	}
}

func TestTouchRefreshesActivity(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})
	current = base.Add(45 * time.Second)
	reg.Touch("ward1")

	sess, _ := reg.Get("ward1")
	if !sess.LastActivity.Equal(current) {
		t.Fatalf("expected activity %v, got %v", current, sess.LastActivity)
	}
	if !sess.EstablishedAt.Equal(base) {
		t.Fatalf("touch must not move establishment time, got %v", sess.EstablishedAt)
	}

	reg.Touch("ward2")
	if reg.Len() != 1 {
		t.Fatal("touching an absent id must not create sessions")
	}
}

func TestFirstByRolePrefersOldestConnection(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	reg.Register("overseer_b", protocol.RoleController, &stubHandle{})
	current = base.Add(time.Second)
	reg.Register("overseer_a", protocol.RoleController, &stubHandle{})
	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})

	sess, ok := reg.FirstByRole(protocol.RoleController)
	if !ok {
		t.Fatal("expected a controller")
	}
	if sess.ID != "overseer_b" {
		t.Fatalf("expected oldest controller, got %q", sess.ID)
	}

	reg.Remove("overseer_b")
	sess, ok = reg.FirstByRole(protocol.RoleController)
	if !ok || sess.ID != "overseer_a" {
		t.Fatalf("expected remaining controller, got %+v ok=%v", sess, ok)
	}

	reg.Remove("overseer_a")
	if _, ok := reg.FirstByRole(protocol.RoleController); ok {
		t.Fatal("expected no controller after removals")
	}
}

func TestFirstByRoleBreaksTiesByID(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry()
	reg.now = func() time.Time { return base }

	reg.Register("overseer_z", protocol.RoleController, &stubHandle{})
	reg.Register("overseer_a", protocol.RoleController, &stubHandle{})

	sess, ok := reg.FirstByRole(protocol.RoleController)
	if !ok || sess.ID != "overseer_a" {
		t.Fatalf("expected id tie-break, got %+v ok=%v", sess, ok)
	}
}

func TestSnapshotOrdersByEstablishment(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	reg := NewRegistry()
	reg.now = func() time.Time { return current }

	reg.Register("ward2", protocol.RoleAgent, &stubHandle{})
	current = base.Add(time.Second)
	reg.Register("ward1", protocol.RoleAgent, &stubHandle{})
	current = base.Add(2 * time.Second)
	reg.Register("overseer", protocol.RoleController, &stubHandle{})

	snap := reg.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(snap))
	}
	wantOrder := []string{"ward2", "ward1", "overseer"}
	for i, want := range wantOrder {
		if snap[i].ID != want {
			t.Fatalf("unexpected order at %d: got %q want %q", i, snap[i].ID, want)
		}
	}
	if snap[2].Role != protocol.RoleController {
		t.Fatalf("unexpected role in summary: %+v", snap[2])
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("ward%d", n)
			for j := 0; j < 50; j++ {
				reg.Register(id, protocol.RoleAgent, &stubHandle{})
				reg.Touch(id)
				reg.Get(id)
				reg.Snapshot()
				reg.FirstByRole(protocol.RoleAgent)
			}
		}(i)
	}
	wg.Wait()

	if reg.Len() != 8 {
		t.Fatalf("expected 8 sessions, got %d", reg.Len())
	}
}
