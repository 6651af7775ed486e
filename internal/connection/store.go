package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/logging"
)

// Persisted state layout inside the state directory: one record for the
// override itself and one for the enabled flag. Only this package reads or
// writes these files.
const (
	overrideFile = "override.json"
	enabledFile  = "override.enabled"
)

// Store resolves the active backend configuration and owns the persisted
// override. The environment default is fixed at construction; the override
// lives on disk so every process sharing the state directory converges on the
// same resolution.
type Store struct {
	env *Config
	dir string
	log logging.Logger

	mu          sync.Mutex
	subs        map[int]func()
	nextSubID   int
	fingerprint string
	closed      bool

	watcher *dirWatcher
}

// NewStore builds a Store. envCfg may be nil (no deploy-time default).
// dir may be empty, in which case no override can be persisted and Resolve
// falls back to the environment default. A watcher on dir picks up changes
// made by other processes; if the watcher cannot start, the store still works
// with local notifications only.
func NewStore(envCfg *Config, dir string, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNopLogger()
	}

	s := &Store{
		env:  envCfg,
		dir:  dir,
		log:  log.With("component", "connection"),
		subs: make(map[int]func()),
	}
	s.fingerprint = s.stateFingerprint()

	if dir != "" {
		w, err := newDirWatcher(dir, s.onExternalChange)
		if err != nil {
			s.log.Warn(context.Background(), "state watcher unavailable, cross-process sync disabled", "error", err)
		} else {
			s.watcher = w
		}
	}

	return s
}

// EnvDefault returns the deploy-time default config, or nil.
func (s *Store) EnvDefault() *Config { return s.env }

// HasEnvDefault reports whether an operator default exists.
func (s *Store) HasEnvDefault() bool { return s.env != nil }

// SaveOverride persists cfg as the user override, marks it enabled, and
// notifies subscribers. cfg must come from ParseConfig; raw input is
// re-validated anyway so a hand-built bad config never reaches disk.
func (s *Store) SaveOverride(cfg *Config) error {
	if s.dir == "" {
		return fmt.Errorf("%w: no state directory configured, cannot persist an override", common.ErrInvalidConfig)
	}

	parsed, err := ParseConfig(cfg.URL, cfg.AnonKey)
	if err != nil {
		return err
	}

	data, err := json.Marshal(parsed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, overrideFile), data, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, enabledFile), []byte("1"), 0o600); err != nil {
		return err
	}

	s.log.Info(context.Background(), "override saved", "url", parsed.URL)
	s.notifyLocal()
	return nil
}

// DisableOverride keeps the stored override but marks it disabled, so
// resolution falls back to the environment default. Notifies subscribers.
func (s *Store) DisableOverride() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, enabledFile), []byte("0"), 0o600); err != nil {
		return err
	}

	s.log.Info(context.Background(), "override disabled")
	s.notifyLocal()
	return nil
}

// ClearOverride deletes the persisted override entirely and notifies
// subscribers. Missing files are fine.
func (s *Store) ClearOverride() error {
	if s.dir == "" {
		return nil
	}
	for _, name := range []string{overrideFile, enabledFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	s.log.Info(context.Background(), "override cleared")
	s.notifyLocal()
	return nil
}

// Resolve picks the active configuration. Pure read, no side effects:
//
//  1. override present and explicitly enabled  -> custom
//  2. environment default present              -> env
//  3. override present (not enabled)           -> custom, as a fallback
//  4. otherwise                                -> none
//
// Rule 3 keeps a connected-but-switched-away project usable when the operator
// default disappears; see DESIGN.md for the open product question around it.
func (s *Store) Resolve() Resolved {
	override := s.readOverride()
	enabled := s.readEnabled()

	if override != nil && enabled {
		return Resolved{Config: override, Source: SourceCustom}
	}
	if s.env != nil {
		return Resolved{Config: s.env, Source: SourceEnv}
	}
	if override != nil {
		return Resolved{Config: override, Source: SourceCustom}
	}
	return Resolved{Source: SourceNone}
}

// Subscribe registers fn to run once per local override mutation and once per
// observed external change to the persisted state. The returned function
// removes the subscription. fn runs after the mutation is durable, so a
// Resolve call from inside fn observes the new state.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close stops the state watcher. No subscriber callback fires after Close
// returns.
func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}

	s.mu.Lock()
	s.closed = true
	s.subs = make(map[int]func())
	s.mu.Unlock()
}

// readOverride loads the persisted override, treating anything malformed
// (missing file, corrupt JSON, wrong shape, invalid url) as "no override".
func (s *Store) readOverride() *Config {
	if s.dir == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, overrideFile))
	if err != nil {
		return nil
	}

	var raw Config
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn(context.Background(), "stored override is corrupt, ignoring", "error", err)
		return nil
	}

	cfg, err := ParseConfig(raw.URL, raw.AnonKey)
	if err != nil {
		s.log.Warn(context.Background(), "stored override is invalid, ignoring", "error", err)
		return nil
	}
	return cfg
}

// readEnabled reports whether the override was explicitly enabled. Missing or
// unreadable flag counts as not enabled.
func (s *Store) readEnabled() bool {
	if s.dir == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(s.dir, enabledFile))
	if err != nil {
		return false
	}
	return string(data) == "1"
}

// stateFingerprint condenses the persisted state so external events that did
// not actually change anything (editor temp files, double notifications) are
// dropped.
func (s *Store) stateFingerprint() string {
	r := s.Resolve()
	enabled := "0"
	if s.readEnabled() {
		enabled = "1"
	}
	return r.Identity() + "\x00" + string(r.Source) + "\x00" + enabled
}

// notifyLocal updates the fingerprint and fans out to subscribers
// unconditionally: a local mutation always counts, even when it rewrites the
// same values.
func (s *Store) notifyLocal() {
	// Fingerprint only touches the filesystem, never s.mu, so computing it
	// under the lock is safe.
	s.mu.Lock()
	s.fingerprint = s.stateFingerprint()
	fns := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// onExternalChange runs on the watcher goroutine after a debounced change in
// the state directory. Subscribers only hear about it when the effective
// state really differs from the last notification.
func (s *Store) onExternalChange() {
	s.mu.Lock()
	fp := s.stateFingerprint()
	if fp == s.fingerprint || s.closed {
		s.mu.Unlock()
		return
	}
	s.fingerprint = fp
	fns := s.snapshotSubsLocked()
	s.mu.Unlock()

	s.log.Debug(context.Background(), "external connection state change observed")
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) snapshotSubsLocked() []func() {
	if s.closed {
		return nil
	}
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}
