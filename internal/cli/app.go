package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mekod/ledger/internal/auth"
	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/config"
	"github.com/mekod/ledger/internal/connection"
	"github.com/mekod/ledger/internal/drafts"
	"github.com/mekod/ledger/internal/logging"
	"github.com/mekod/ledger/internal/posts"
	"github.com/mekod/ledger/internal/profile"
)

// App owns the wired core and drives it from the REPL. One per process.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	store  *connection.Store
	facade *auth.Facade
	posts  *posts.Service
	drafts *drafts.Store

	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the application from cfg: connection store and session cache
// in the state directory, the auth façade on top, and the local drafts
// database. An invalid deploy-time default is logged and ignored rather
// than refusing to start; the user can still connect their own project.
func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	ctx := context.Background()

	var env *connection.Config
	if cfg.SupabaseURL != "" || cfg.SupabaseAnonKey != "" {
		parsed, err := connection.ParseConfig(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			log.Warn(ctx, "ignoring invalid default backend config", "error", err)
		} else {
			env = parsed
		}
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, err
	}

	store := connection.NewStore(env, cfg.StateDir, log)
	registry := backend.NewRegistry(
		backend.WithSessionStore(backend.NewFileSessionStore(cfg.StateDir)),
		backend.WithLogger(log),
	)
	facade := auth.New(store, registry, profile.NewReconciler(log), log)

	local, err := drafts.Open(ctx, filepath.Join(cfg.StateDir, "drafts.db"))
	if err != nil {
		facade.Close()
		store.Close()
		return nil, err
	}

	return &App{
		cfg:    cfg,
		log:    log,
		store:  store,
		facade: facade,
		posts:  posts.NewService(log),
		drafts: local,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run drives the REPL until exit or EOF, then releases everything.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx, os.Stdin)
}

// Close releases the façade, the store watcher and the drafts database.
func (a *App) Close() {
	a.facade.Close()
	a.store.Close()
	if err := a.drafts.Close(); err != nil {
		a.log.Warn(context.Background(), "closing drafts database failed", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.facade.State().Authenticated()
}

// getStatus renders the prompt decoration: who is signed in, and on which
// backend.
func (a *App) getStatus() string {
	st := a.facade.State()

	var parts []string
	switch {
	case st.Profile != nil:
		parts = append(parts, st.Profile.Username)
	case st.User != nil:
		parts = append(parts, st.User.Email)
	}
	switch st.Resolved.Source {
	case connection.SourceEnv:
		parts = append(parts, "default")
	case connection.SourceCustom:
		parts = append(parts, "custom")
	default:
		parts = append(parts, "no backend")
	}
	return "(" + strings.Join(parts, " ") + ")"
}
