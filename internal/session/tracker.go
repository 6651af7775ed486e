// Package session tracks the authenticated user against whichever backend
// client is currently active. When the active connection changes, the
// tracker tears down its subscription to the old client's auth stream before
// touching the new one, so a session from one project can never leak into
// the UI under another.
package session

import (
	"context"
	"sync"

	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/logging"
)

// State is the tracker's position in its lifecycle for the active client.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// AuthAPI is the slice of the backend client the tracker needs. Satisfied by
// *backend.AuthClient; tests substitute fakes.
type AuthAPI interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	OnAuthStateChange(fn backend.AuthStateFunc) *backend.Subscription
}

// Snapshot is an immutable view of the tracker's state, passed to the change
// callback and returned by Snapshot().
type Snapshot struct {
	State   State
	User    *backend.User
	Session *backend.Session
}

// Tracker is the auth-session state machine. All methods are safe for
// concurrent use. The change callback runs without internal locks held and
// may read the tracker.
type Tracker struct {
	log      logging.Logger
	onChange func(Snapshot)

	mu         sync.Mutex
	state      State
	user       *backend.User
	session    *backend.Session
	sub        *backend.Subscription
	generation int
}

// NewTracker builds a tracker in the Uninitialized state. onChange may be
// nil.
func NewTracker(log logging.Logger, onChange func(Snapshot)) *Tracker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Tracker{
		log:      log.With("component", "session-tracker"),
		onChange: onChange,
		state:    StateUninitialized,
	}
}

// Track points the tracker at a new active client. The previous
// subscription is released first, in-memory user/session are cleared, the
// tracker enters Loading, and any existing session for the new client is
// fetched asynchronously. Results of a fetch that has been superseded by a
// newer Track call are discarded on arrival.
func (t *Tracker) Track(ctx context.Context, auth AuthAPI) {
	old := t.supersede()
	if old != nil {
		// Old subscription must be fully down before the new one exists;
		// two live subscriptions would emit conflicting updates.
		old.Unsubscribe()
	}

	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.user = nil
	t.session = nil
	t.state = StateLoading
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)

	sub := auth.OnAuthStateChange(func(ev backend.AuthEvent, s *backend.Session) {
		t.handleEvent(gen, ev, s)
	})

	t.mu.Lock()
	if gen != t.generation {
		// Superseded while subscribing; back out.
		t.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	t.sub = sub
	t.mu.Unlock()

	go func() {
		s, err := auth.GetSession(ctx)
		if err != nil {
			t.log.Warn(ctx, "session fetch failed, treating as anonymous", "error", err)
			s = nil
		}
		t.completeLoad(gen, s)
	}()
}

// Stop releases the current subscription and freezes the tracker. No state
// update or callback happens after Stop returns.
func (t *Tracker) Stop() {
	old := t.supersede()
	if old != nil {
		old.Unsubscribe()
	}

	t.mu.Lock()
	t.state = StateUninitialized
	t.user = nil
	t.session = nil
	t.mu.Unlock()
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// supersede invalidates the current generation and detaches the current
// subscription, returning it for teardown outside the lock (Unsubscribe may
// wait on an in-flight callback that needs t.mu).
func (t *Tracker) supersede() *backend.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	old := t.sub
	t.sub = nil
	return old
}

// completeLoad applies the result of the initial session fetch, unless a
// push event or a newer Track already settled the state.
func (t *Tracker) completeLoad(gen int, s *backend.Session) {
	t.mu.Lock()
	if gen != t.generation || t.state != StateLoading {
		t.mu.Unlock()
		return
	}
	t.apply(s)
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// handleEvent applies a pushed auth-state change from the active client.
func (t *Tracker) handleEvent(gen int, ev backend.AuthEvent, s *backend.Session) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	switch ev {
	case backend.EventSignedIn, backend.EventTokenRefreshed:
		t.apply(s)
	case backend.EventSignedOut:
		t.apply(nil)
	default:
		t.mu.Unlock()
		return
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

func (t *Tracker) apply(s *backend.Session) {
	if s != nil && s.User != nil {
		t.state = StateAuthenticated
		t.user = s.User
		t.session = s
		return
	}
	t.state = StateAnonymous
	t.user = nil
	t.session = nil
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{State: t.state, User: t.user, Session: t.session}
}

func (t *Tracker) notify(snap Snapshot) {
	if t.onChange != nil {
		t.onChange(snap)
	}
}
