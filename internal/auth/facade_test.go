package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mekod/ledger/internal/auth"
	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/connection"
	"github.com/mekod/ledger/internal/profile"
)

type profileRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	UpdatedAt time.Time `json:"updated_at"`
}

// fakeProject is one backend project: a sign-in endpoint issuing sessions
// for a single fixed user, plus an in-memory profiles table.
type fakeProject struct {
	t      *testing.T
	userID string
	email  string

	mu       sync.Mutex
	profiles map[string]profileRow
	inserts  int

	srv *httptest.Server
}

func newFakeProject(t *testing.T, userID, email string) *fakeProject {
	t.Helper()
	p := &fakeProject{t: t, userID: userID, email: email, profiles: make(map[string]profileRow)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.session())
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()

		out := []profileRow{}
		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		if row, ok := p.profiles[id]; ok {
			out = append(out, row)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("POST /rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.inserts++

		var in profileRow
		_ = json.NewDecoder(r.Body).Decode(&in)

		conflict := false
		if _, ok := p.profiles[in.ID]; ok {
			conflict = true
		}
		for _, existing := range p.profiles {
			if existing.Username == in.Username {
				conflict = true
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if conflict {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code": "23505", "message": "duplicate key value violates unique constraint"}`))
			return
		}
		in.UpdatedAt = time.Now().UTC()
		p.profiles[in.ID] = in
		_ = json.NewEncoder(w).Encode([]profileRow{in})
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProject) session() *backend.Session {
	exp := time.Now().Add(time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": p.userID, "exp": exp.Unix()})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(p.t, err)
	return &backend.Session{
		AccessToken:  signed,
		RefreshToken: "refresh-" + p.userID,
		ExpiresAt:    exp.Unix(),
		User:         &backend.User{ID: p.userID, Email: p.email},
	}
}

func (p *fakeProject) config(t *testing.T) *connection.Config {
	t.Helper()
	cfg, err := connection.ParseConfig(p.srv.URL, "anon-key")
	require.NoError(t, err)
	return cfg
}

func (p *fakeProject) insertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inserts
}

// recorder collects façade states in order and checks the consistency
// invariant on demand: a profile is only ever shown next to its own user.
type recorder struct {
	mu    sync.Mutex
	snaps []auth.State
}

func (r *recorder) record(st auth.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, st)
}

func (r *recorder) all() []auth.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.State(nil), r.snaps...)
}

func requireConsistent(t *testing.T, snaps []auth.State) {
	t.Helper()
	for i, st := range snaps {
		if st.Profile != nil {
			require.NotNil(t, st.User, "snapshot %d has a profile without a user", i)
			require.Equal(t, st.User.ID, st.Profile.ID, "snapshot %d mixes identities", i)
		}
		if st.Session != nil {
			require.NotNil(t, st.User, "snapshot %d has a session without a user", i)
		}
	}
}

func newFacade(t *testing.T, env *connection.Config) (*auth.Facade, *connection.Store) {
	t.Helper()
	store := connection.NewStore(env, t.TempDir(), nil)
	t.Cleanup(store.Close)

	registry := backend.NewRegistry(backend.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	f := auth.New(store, registry, profile.NewReconciler(nil), nil)
	t.Cleanup(f.Close)
	return f, store
}

func waitFor(t *testing.T, f *auth.Facade, cond func(auth.State) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(f.State())
	}, 3*time.Second, 10*time.Millisecond)
}

func settled(st auth.State) bool { return !st.Loading }

func TestFacade_NothingConfigured(t *testing.T) {
	f, _ := newFacade(t, nil)

	st := f.State()
	require.Equal(t, connection.SourceNone, st.Resolved.Source)
	require.Nil(t, st.User)
	require.False(t, st.Loading)

	_, err := f.ActiveClient()
	require.ErrorIs(t, err, common.ErrNoConnection)
	require.ErrorIs(t, f.SignIn(context.Background(), "a@b.c", "pw"), common.ErrNoConnection)
	require.ErrorIs(t, f.SignOut(context.Background()), common.ErrNoConnection)
}

func TestFacade_EnvDefaultStartsAnonymous(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, project.config(t))

	waitFor(t, f, func(st auth.State) bool {
		return settled(st) && st.Resolved.Source == connection.SourceEnv
	})
	st := f.State()
	require.Nil(t, st.User)
	require.Nil(t, st.Profile)
	require.False(t, st.Authenticated())
}

func TestFacade_SignInEstablishesProfile(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, project.config(t))

	rec := &recorder{}
	defer f.Subscribe(rec.record)()

	waitFor(t, f, settled)
	require.NoError(t, f.SignIn(context.Background(), "jane@mail.com", "pw"))

	waitFor(t, f, func(st auth.State) bool {
		return st.User != nil && st.Profile != nil
	})
	st := f.State()
	require.Equal(t, "user-1", st.User.ID)
	require.Equal(t, "user-1", st.Profile.ID)
	require.Equal(t, "jane", st.Profile.Username)

	requireConsistent(t, rec.all())
}

func TestFacade_SignOutClearsEverything(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, project.config(t))

	waitFor(t, f, settled)
	require.NoError(t, f.SignIn(context.Background(), "jane@mail.com", "pw"))
	waitFor(t, f, func(st auth.State) bool { return st.Profile != nil })

	require.NoError(t, f.SignOut(context.Background()))
	waitFor(t, f, func(st auth.State) bool {
		return settled(st) && st.User == nil && st.Session == nil && st.Profile == nil
	})
}

func TestFacade_ConnectSwitchesProjectAndClearsIdentity(t *testing.T) {
	projectA := newFakeProject(t, "user-a", "alice@mail.com")
	projectB := newFakeProject(t, "user-b", "bob@mail.com")
	f, _ := newFacade(t, projectA.config(t))

	waitFor(t, f, settled)
	require.NoError(t, f.SignIn(context.Background(), "alice@mail.com", "pw"))
	waitFor(t, f, func(st auth.State) bool { return st.Profile != nil })

	rec := &recorder{}
	defer f.Subscribe(rec.record)()

	require.NoError(t, f.Connect(projectB.srv.URL, "anon-key"))

	// The moment the connection switches, alice is gone from the visible
	// state; project B has no persisted session, so it settles anonymous.
	st := f.State()
	require.Equal(t, connection.SourceCustom, st.Resolved.Source)
	waitFor(t, f, func(st auth.State) bool {
		return settled(st) && st.Resolved.Config != nil && st.Resolved.Config.Equal(projectB.config(t))
	})
	require.Nil(t, f.State().User)

	for i, snap := range rec.all() {
		if snap.User != nil {
			require.NotEqual(t, "user-a", snap.User.ID, "snapshot %d leaks the previous project's user", i)
		}
	}
	requireConsistent(t, rec.all())
}

func TestFacade_ConcurrentConnectsTrackResolvedBackend(t *testing.T) {
	projectA := newFakeProject(t, "user-a", "alice@mail.com")
	projectB := newFakeProject(t, "user-b", "bob@mail.com")
	f, _ := newFacade(t, nil)

	// Hammer the façade with interleaved switches; each Connect refreshes on
	// its own goroutine, racing the state watcher's refreshes.
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		target := projectA
		if i%2 == 1 {
			target = projectB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.Connect(target.srv.URL, "anon-key")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// After the storm the tracker must be attached to whatever the last
	// switch resolved: a sign-in event only reaches the visible state
	// through that connection's subscription.
	require.NoError(t, f.Connect(projectB.srv.URL, "anon-key"))
	waitFor(t, f, func(st auth.State) bool {
		return settled(st) && st.Resolved.Config != nil && st.Resolved.Config.Equal(projectB.config(t))
	})

	require.NoError(t, f.SignIn(context.Background(), "bob@mail.com", "pw"))
	waitFor(t, f, func(st auth.State) bool {
		return st.User != nil && st.User.ID == "user-b"
	})
}

func TestFacade_SwitchBackRestoresSession(t *testing.T) {
	projectA := newFakeProject(t, "user-a", "alice@mail.com")
	projectB := newFakeProject(t, "user-b", "bob@mail.com")
	f, _ := newFacade(t, projectA.config(t))

	waitFor(t, f, settled)
	require.NoError(t, f.SignIn(context.Background(), "alice@mail.com", "pw"))
	waitFor(t, f, func(st auth.State) bool { return st.Profile != nil })
	insertsAfterFirstLogin := projectA.insertCount()

	require.NoError(t, f.Connect(projectB.srv.URL, "anon-key"))
	waitFor(t, f, func(st auth.State) bool { return settled(st) && st.User == nil })

	// The registry kept project A's client alive, so switching back finds
	// alice's session and her existing profile without a new insert.
	require.NoError(t, f.SwitchToDefault())
	waitFor(t, f, func(st auth.State) bool {
		return st.User != nil && st.Profile != nil
	})
	st := f.State()
	require.Equal(t, connection.SourceEnv, st.Resolved.Source)
	require.Equal(t, "user-a", st.User.ID)
	require.Equal(t, "alice", st.Profile.Username)
	require.Equal(t, insertsAfterFirstLogin, projectA.insertCount())
}

func TestFacade_SwitchToDefaultWithoutEnv(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, nil)

	require.NoError(t, f.Connect(project.srv.URL, "anon-key"))
	waitFor(t, f, settled)

	require.ErrorIs(t, f.SwitchToDefault(), common.ErrNoConnection)
}

func TestFacade_DisconnectDropsCustomConnection(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, nil)

	require.NoError(t, f.Connect(project.srv.URL, "anon-key"))
	waitFor(t, f, func(st auth.State) bool {
		return settled(st) && st.Resolved.Source == connection.SourceCustom
	})

	require.NoError(t, f.Disconnect())
	waitFor(t, f, func(st auth.State) bool {
		return st.Resolved.Source == connection.SourceNone
	})
	_, err := f.ActiveClient()
	require.ErrorIs(t, err, common.ErrNoConnection)
}

func TestFacade_RefreshProfile(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	f, _ := newFacade(t, project.config(t))
	waitFor(t, f, settled)

	_, err := f.RefreshProfile(context.Background())
	require.ErrorIs(t, err, common.ErrNoSession)

	require.NoError(t, f.SignIn(context.Background(), "jane@mail.com", "pw"))
	waitFor(t, f, func(st auth.State) bool { return st.User != nil })

	p, err := f.RefreshProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "jane", p.Username)
}

func TestFacade_NoUpdatesAfterClose(t *testing.T) {
	project := newFakeProject(t, "user-1", "jane@mail.com")
	store := connection.NewStore(project.config(t), t.TempDir(), nil)
	t.Cleanup(store.Close)
	registry := backend.NewRegistry(backend.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	f := auth.New(store, registry, profile.NewReconciler(nil), nil)

	rec := &recorder{}
	f.Subscribe(rec.record)
	waitFor(t, f, settled)

	client, err := f.ActiveClient()
	require.NoError(t, err)
	f.Close()

	before := len(rec.all())
	_, err = client.Auth.SignInWithPassword(context.Background(), "jane@mail.com", "pw")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, before, len(rec.all()))
}

func TestFacade_SignUpConfirmationRequired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// No access token: the project requires email confirmation.
		_, _ = w.Write([]byte(`{"id": "user-9", "email": "new@mail.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg, err := connection.ParseConfig(srv.URL, "anon-key")
	require.NoError(t, err)
	f, _ := newFacade(t, cfg)
	waitFor(t, f, settled)

	s, err := f.SignUp(context.Background(), "new@mail.com", "pw")
	require.NoError(t, err)
	require.Nil(t, s)
}
