// Package auth composes the connection store, client registry, session
// tracker and profile reconciler into one façade with a single observable
// state. Callers read snapshots and subscribe to changes; every mutation
// funnels through the store or the active client's auth API, so the façade
// itself holds no truth the lower layers don't.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/connection"
	"github.com/mekod/ledger/internal/logging"
	"github.com/mekod/ledger/internal/profile"
	"github.com/mekod/ledger/internal/session"
)

// State is one consistent view of the façade: which backend is active, who
// is signed in there, and that identity's profile. User, Session and Profile
// always belong to the same identity on the same connection; Profile may lag
// behind User while the reconciler works, but it is never another user's.
type State struct {
	Resolved connection.Resolved
	User     *backend.User
	Session  *backend.Session
	Profile  *profile.Profile
	Loading  bool
}

// Authenticated reports whether a signed-in user is present.
func (s State) Authenticated() bool { return s.User != nil }

// Facade is the application-facing entry point. Construct one per process
// with New and release it with Close. All methods are safe for concurrent
// use. Subscriber callbacks run on whichever goroutine produced the change
// (a façade method, the auth client, or the state watcher) and must not call
// back into the façade's mutating methods.
type Facade struct {
	store      *connection.Store
	registry   *backend.Registry
	reconciler *profile.Reconciler
	tracker    *session.Tracker
	log        logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// refreshMu serializes whole refresh passes. Without it two concurrent
	// refreshes could install clients under mu in one order and call
	// tracker.Track in the other, leaving the tracker attached to a
	// connection the visible state no longer reports.
	refreshMu sync.Mutex

	mu         sync.Mutex
	resolved   connection.Resolved
	client     *backend.Client
	last       session.Snapshot
	prof       *profile.Profile
	profileGen int
	subs       map[int]func(State)
	nextSubID  int
	unsubStore func()
	closed     bool
}

// New wires the façade and performs the initial resolution: the active
// connection is picked, its persisted session (if any) starts loading, and
// the first state change will arrive on subscribers registered right after
// New returns.
func New(store *connection.Store, registry *backend.Registry, reconciler *profile.Reconciler, log logging.Logger) *Facade {
	if log == nil {
		log = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Facade{
		store:      store,
		registry:   registry,
		reconciler: reconciler,
		log:        log.With("component", "auth"),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[int]func(State)),
	}
	f.tracker = session.NewTracker(log, f.onSession)
	f.unsubStore = store.Subscribe(f.refresh)
	f.refresh()
	return f
}

// Close detaches from the store and the active client. No subscriber
// callback fires after Close returns.
func (f *Facade) Close() {
	f.unsubStore()
	f.cancel()
	f.tracker.Stop()

	f.mu.Lock()
	f.closed = true
	f.subs = make(map[int]func(State))
	f.mu.Unlock()
}

// State returns the current snapshot.
func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// Subscribe registers fn for every state change. The returned function
// removes the subscription.
func (f *Facade) Subscribe(fn func(State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSubID
	f.nextSubID++
	f.subs[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// ActiveClient returns the client for the currently resolved connection.
func (f *Facade) ActiveClient() (*backend.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil, fmt.Errorf("%w: connect a backend project first", common.ErrNoConnection)
	}
	return f.client, nil
}

// SignIn authenticates against the active connection. State updates arrive
// through the tracker; the error return only reports the immediate outcome.
func (f *Facade) SignIn(ctx context.Context, email, password string) error {
	c, err := f.ActiveClient()
	if err != nil {
		return err
	}
	_, err = c.Auth.SignInWithPassword(ctx, email, password)
	return err
}

// SignUp registers a new account on the active connection. A nil session
// with a nil error means the backend requires email confirmation before the
// first sign-in.
func (f *Facade) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	c, err := f.ActiveClient()
	if err != nil {
		return nil, err
	}
	return c.Auth.SignUp(ctx, email, password)
}

// SignOut ends the session on the active connection. Local state is cleared
// even when the backend cannot be reached.
func (f *Facade) SignOut(ctx context.Context) error {
	c, err := f.ActiveClient()
	if err != nil {
		return err
	}
	return c.Auth.SignOut(ctx)
}

// Connect validates and persists url/anonKey as the user override and makes
// it the active connection. Any session from the previous connection leaves
// the visible state before this returns; the new connection starts loading
// its own persisted session.
func (f *Facade) Connect(url, anonKey string) error {
	cfg, err := connection.ParseConfig(url, anonKey)
	if err != nil {
		return err
	}
	// SaveOverride notifies the store subscription, which re-resolves and
	// re-tracks synchronously on this goroutine.
	return f.store.SaveOverride(cfg)
}

// SwitchToDefault signs out of the current connection (best effort) and
// disables the override so resolution falls back to the deploy-time default.
// The override itself stays on disk for a later Connect-less switch back.
func (f *Facade) SwitchToDefault() error {
	if !f.store.HasEnvDefault() {
		return fmt.Errorf("%w: no default backend is configured", common.ErrNoConnection)
	}
	f.signOutQuietly()
	return f.store.DisableOverride()
}

// Disconnect signs out of the current connection (best effort) and removes
// the persisted override entirely.
func (f *Facade) Disconnect() error {
	f.signOutQuietly()
	return f.store.ClearOverride()
}

// signOutQuietly ends the session on the connection being left behind. A
// failure is logged, never surfaced: the user asked to leave, not to sign
// out.
func (f *Facade) signOutQuietly() {
	c, err := f.ActiveClient()
	if err != nil {
		return
	}
	if err := c.Auth.SignOut(f.ctx); err != nil {
		f.log.Warn(f.ctx, "sign-out while leaving connection failed", "error", err)
	}
}

// RefreshProfile re-runs profile reconciliation for the signed-in user and
// returns the fresh row. In-flight background syncs are superseded.
func (f *Facade) RefreshProfile(ctx context.Context) (*profile.Profile, error) {
	f.mu.Lock()
	user := f.last.User
	client := f.client
	f.profileGen++
	gen := f.profileGen
	f.mu.Unlock()

	if client == nil {
		return nil, fmt.Errorf("%w: connect a backend project first", common.ErrNoConnection)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: sign in first", common.ErrNoSession)
	}

	p := f.reconciler.Ensure(ctx, user, client)
	if p == nil {
		return nil, fmt.Errorf("no profile could be established for user %s", user.ID)
	}
	f.applyProfile(gen, user.ID, p)
	return p, nil
}

// refresh re-resolves the active connection. On an identity change the old
// tracker subscription is torn down, visible user/session/profile are
// cleared and the new connection's session starts loading. Runs on whatever
// goroutine mutated or observed the store state. Refreshes run one at a
// time: resolve and the matching Track/Stop happen under refreshMu, so the
// tracker always ends up on the connection the last refresh resolved.
func (f *Facade) refresh() {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	res := f.store.Resolve()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	changed := res.Identity() != f.resolved.Identity()
	f.resolved = res

	var client *backend.Client
	if changed {
		if res.Config != nil {
			c, err := f.registry.GetClient(res.Config)
			if err != nil {
				f.log.Error(f.ctx, "client construction failed", "error", err)
			} else {
				client = c
			}
		}
		f.client = client
		f.last = session.Snapshot{State: session.StateUninitialized}
		f.prof = nil
		f.profileGen++
	}
	st := f.stateLocked()
	f.mu.Unlock()

	// Subscribers see the cleared state before the new connection's Loading
	// state, never a mix of old identity and new connection.
	f.notify(st)

	if !changed {
		return
	}
	if client == nil {
		f.tracker.Stop()
		return
	}
	f.tracker.Track(f.ctx, client.Auth)
}

// onSession is the tracker's change callback.
func (f *Facade) onSession(snap session.Snapshot) {
	var kickSync func()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.last = snap

	if snap.State == session.StateAuthenticated && snap.User != nil {
		// Token refreshes keep the user; only start a sync when the profile
		// on hand belongs to someone else or nobody.
		if f.prof == nil || f.prof.ID != snap.User.ID {
			f.prof = nil
			f.profileGen++
			gen, user, client := f.profileGen, snap.User, f.client
			kickSync = func() { f.syncProfile(gen, user, client) }
		}
	} else {
		f.prof = nil
		f.profileGen++
	}
	st := f.stateLocked()
	f.mu.Unlock()

	f.notify(st)
	if kickSync != nil {
		go kickSync()
	}
}

// syncProfile runs reconciliation in the background and applies the result
// unless something newer happened meanwhile.
func (f *Facade) syncProfile(gen int, user *backend.User, client *backend.Client) {
	p := f.reconciler.Ensure(f.ctx, user, client)
	if p == nil {
		return
	}
	f.applyProfile(gen, user.ID, p)
}

// applyProfile installs p if the generation is still current and the same
// user is still signed in. A stale result is dropped silently.
func (f *Facade) applyProfile(gen int, userID string, p *profile.Profile) {
	f.mu.Lock()
	if f.closed || gen != f.profileGen || f.last.User == nil || f.last.User.ID != userID {
		f.mu.Unlock()
		return
	}
	f.prof = p
	st := f.stateLocked()
	f.mu.Unlock()
	f.notify(st)
}

func (f *Facade) stateLocked() State {
	return State{
		Resolved: f.resolved,
		User:     f.last.User,
		Session:  f.last.Session,
		Profile:  f.prof,
		Loading:  f.last.State == session.StateLoading,
	}
}

func (f *Facade) notify(st State) {
	f.mu.Lock()
	fns := make([]func(State), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
