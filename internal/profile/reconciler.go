package profile

import (
	"context"
	"errors"

	"github.com/mekod/ledger/internal/backend"
	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/logging"
)

// suffixLen is the length of the random tail appended on a username clash.
const suffixLen = 4

// Reconciler ensures profile rows exist for authenticated users. Stateless
// apart from its logger; safe for concurrent use.
type Reconciler struct {
	log logging.Logger
}

func NewReconciler(log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Reconciler{log: log.With("component", "profile")}
}

// Ensure returns the profile for user, creating it on first login. A nil
// result means no profile could be established; the cause has been logged
// and the caller should treat the user as profile-less rather than failing.
//
// The first insert uses the username derived from the user's email; if that
// name is taken the insert is retried exactly once with a random 4-character
// suffix. Two racing Ensure calls for the same identity converge on the row
// whichever call managed to insert (the loser's conflict lands on the id
// column and surfaces as nil, not as a duplicate row).
func (r *Reconciler) Ensure(ctx context.Context, user *backend.User, client *backend.Client) *Profile {
	if user == nil || client == nil {
		return nil
	}

	existing, ok := r.fetch(ctx, user.ID, client)
	if !ok {
		return nil
	}
	if existing != nil {
		return existing
	}

	base := UsernameFromEmail(user.Email)
	candidates := []string{base, base + "-" + common.RandSuffix(suffixLen)}

	for _, username := range candidates {
		err := client.Table(TableName).
			Insert(newProfileRow{ID: user.ID, Username: username}).
			Exec(ctx)
		if err == nil {
			// Re-fetch rather than trusting the insert response: some
			// deployments strip the representation.
			created, _ := r.fetch(ctx, user.ID, client)
			return created
		}
		if errors.Is(err, common.ErrConflict) {
			continue
		}
		r.log.Error(ctx, "profile insert failed", "user_id", user.ID, "error", err)
		return nil
	}

	r.log.Error(ctx, "profile insert kept conflicting, giving up", "user_id", user.ID, "base", base)
	return nil
}

// fetch looks the profile up by id. The second return is false on a genuine
// lookup error (as opposed to "no row").
func (r *Reconciler) fetch(ctx context.Context, userID string, client *backend.Client) (*Profile, bool) {
	var p Profile
	found, err := client.Table(TableName).
		Select("*").
		Eq("id", userID).
		Maybe(ctx, &p)
	if err != nil {
		r.log.Error(ctx, "profile lookup failed", "user_id", userID, "error", err)
		return nil, false
	}
	if !found {
		return nil, true
	}
	return &p, true
}
