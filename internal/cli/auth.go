package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mekod/ledger/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for credentials and creates an account on the active
// backend. Projects with email confirmation enabled return no session; the
// user is told to confirm and log in afterwards.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.facade.SignUp(ctx, email, string(password))
	if err != nil {
		if errors.Is(err, common.ErrNoConnection) {
			fmt.Fprintln(a.out, "No backend connected. Use 'connect' first.")
			return nil
		}
		return err
	}

	if session == nil {
		fmt.Fprintln(a.out, "Account created. Check your email to confirm it, then run 'login'.")
	} else {
		fmt.Fprintln(a.out, "Registered and signed in.")
	}
	return nil
}

// Login prompts for credentials and signs in on the active backend.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.facade.SignIn(ctx, email, string(password)); err != nil {
		switch {
		case errors.Is(err, common.ErrNoConnection):
			fmt.Fprintln(a.out, "No backend connected. Use 'connect' first.")
		case errors.Is(err, common.ErrUnauthorized):
			fmt.Fprintln(a.out, "Invalid email or password.")
		default:
			return err
		}
		return nil
	}

	fmt.Fprintln(a.out, "Signed in.")
	return nil
}

// Logout ends the current session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.facade.SignOut(ctx); err != nil {
		if errors.Is(err, common.ErrNoConnection) {
			fmt.Fprintln(a.out, "No backend connected.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

// Whoami prints the signed-in identity.
func (a *App) Whoami(ctx context.Context) error {
	st := a.facade.State()
	switch {
	case st.Loading:
		fmt.Fprintln(a.out, "Session is still loading, try again in a moment.")
	case st.User == nil:
		fmt.Fprintln(a.out, "Not signed in.")
	default:
		fmt.Fprintf(a.out, "%s (%s)\n", st.User.Email, st.User.ID)
		if st.Profile != nil {
			fmt.Fprintf(a.out, "Username: %s\n", st.Profile.Username)
			if st.Profile.Bio != "" {
				fmt.Fprintf(a.out, "Bio: %s\n", st.Profile.Bio)
			}
		}
	}
	return nil
}
