// Package registry tracks live relay sessions keyed by client id.
//
// The registry owns session bookkeeping only. It never reads from or
// writes to connections itself; delivery goes through the Handle the
// session was registered with, and closing a displaced handle is the
// caller's job.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/wardctl/internal/protocol"
)

// Handle is the write side of one connected session.
type Handle interface {
	Deliver(frame []byte) error
	Close() error
}

// Session is the registry's record for one connected client.
type Session struct {
	ID            string
	Role          protocol.Role
	Handle        Handle
	EstablishedAt time.Time
	LastActivity  time.Time
}

// Summary is handle-free session state safe to hand across boundaries.
type Summary struct {
	ID            string
	Role          protocol.Role
	EstablishedAt time.Time
	LastActivity  time.Time
}

// Registry holds the live session set behind one lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Register binds id to h, displacing any previous session under the same
// id. The displaced handle is returned so the caller can close it; nil
// means the id was free.
func (r *Registry) Register(id string, role protocol.Role, h Handle) Handle {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	var displaced Handle
	if prev, ok := r.sessions[id]; ok {
		displaced = prev.Handle
	}
	r.sessions[id] = &Session{
		ID:            id,
		Role:          role,
		Handle:        h,
		EstablishedAt: now,
		LastActivity:  now,
	}
	return displaced
}

// Remove drops the session for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// RemoveHandle drops the session for id only while it still owns h.
// A reader tearing down a displaced connection uses this so it cannot
// evict the session that replaced it. Reports whether a removal happened.
func (r *Registry) RemoveHandle(id string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || sess.Handle != h {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Touch refreshes the activity timestamp for id. Touching an absent id
// is a no-op.
func (r *Registry) Touch(id string) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		sess.LastActivity = now
	}
}

// Get returns a copy of the session for id.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// FirstByRole returns the session with the given role that has been
// connected the longest, ties broken by id. Forwarding targets exactly
// one destination, so "first" must be stable across calls.
func (r *Registry) FirstByRole(role protocol.Role) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Session
	for _, sess := range r.sessions {
		if sess.Role != role {
			continue
		}
		if best == nil || earlier(sess, best) {
			best = sess
		}
	}
	if best == nil {
		return Session{}, false
	}
	return *best, true
}

func earlier(a, b *Session) bool {
	if a.EstablishedAt.Equal(b.EstablishedAt) {
		return a.ID < b.ID
	}
	return a.EstablishedAt.Before(b.EstablishedAt)
}

// Snapshot returns handle-free state for every session, ordered by
// establishment time then id.
func (r *Registry) Snapshot() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, Summary{
			ID:            sess.ID,
			Role:          sess.Role,
			EstablishedAt: sess.EstablishedAt,
			LastActivity:  sess.LastActivity,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EstablishedAt.Equal(out[j].EstablishedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EstablishedAt.Before(out[j].EstablishedAt)
	})
	return out
}

// Len returns the live session count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// removeIfIdleSince drops id only while its activity timestamp is still
// before cutoff, so a session touched between a sweep's snapshot and its
// removal pass survives.
func (r *Registry) removeIfIdleSince(id string, cutoff time.Time) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || !sess.LastActivity.Before(cutoff) {
		return Summary{}, false
	}
	delete(r.sessions, id)
	return Summary{
		ID:            sess.ID,
		Role:          sess.Role,
		EstablishedAt: sess.EstablishedAt,
		LastActivity:  sess.LastActivity,
	}, true
}
