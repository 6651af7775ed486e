package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/connection"
)

// Connect prompts for a project URL and anon key, makes it the active
// connection, and probes the schema so a freshly created project gets setup
// guidance right away.
func (a *App) Connect(ctx context.Context) error {
	url, err := getSimpleText(a.reader, "Enter project URL", a.out)
	if err != nil {
		return err
	}
	anonKey, err := getSimpleText(a.reader, "Enter anon key", a.out)
	if err != nil {
		return err
	}

	if err := a.facade.Connect(url, anonKey); err != nil {
		if errors.Is(err, common.ErrInvalidConfig) {
			fmt.Fprintln(a.out, "That doesn't look like a valid project:", err.Error())
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Connected.")
	return a.probeSchema(ctx)
}

// UseDefault switches back to the deploy-time default backend.
func (a *App) UseDefault(ctx context.Context) error {
	if err := a.facade.SwitchToDefault(); err != nil {
		if errors.Is(err, common.ErrNoConnection) {
			fmt.Fprintln(a.out, "No default backend is configured; use 'connect' instead.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Using the default backend.")
	return nil
}

// Disconnect forgets the custom connection.
func (a *App) Disconnect(ctx context.Context) error {
	if err := a.facade.Disconnect(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Disconnected.")
	return nil
}

// Status prints the resolved connection and session in human terms.
func (a *App) Status(ctx context.Context) error {
	st := a.facade.State()

	switch st.Resolved.Source {
	case connection.SourceNone:
		fmt.Fprintln(a.out, "No backend connected. Use 'connect' to add your project.")
	case connection.SourceEnv:
		fmt.Fprintf(a.out, "Backend: %s (default)\n", st.Resolved.Config.URL)
	case connection.SourceCustom:
		fmt.Fprintf(a.out, "Backend: %s (custom)\n", st.Resolved.Config.URL)
	}

	switch {
	case st.Loading:
		fmt.Fprintln(a.out, "Session: loading...")
	case st.User != nil:
		fmt.Fprintf(a.out, "Signed in as %s\n", st.User.Email)
		if st.Profile != nil {
			fmt.Fprintf(a.out, "Username: %s\n", st.Profile.Username)
		}
	default:
		fmt.Fprintln(a.out, "Not signed in.")
	}
	return nil
}

func (a *App) probeSchema(ctx context.Context) error {
	client, err := a.facade.ActiveClient()
	if err != nil {
		return err
	}
	if err := a.posts.Probe(ctx, client); err != nil {
		if errors.Is(err, common.ErrSchemaMissing) {
			fmt.Fprintln(a.out, "The project is reachable but has no schema yet. Run the setup SQL in your project, then reconnect.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Schema check passed.")
	return nil
}
