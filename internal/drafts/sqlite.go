package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/dbx"
)

// Repository is the storage contract for drafts.
type Repository interface {
	Save(ctx context.Context, d *Draft) error
	Get(ctx context.Context, id string) (*Draft, error)
	List(ctx context.Context) ([]Draft, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository over a sqlite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given
// database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts a draft by id. A draft without an id gets a fresh one; a zero
// SavedAt is stamped with the current time. Both mutations are visible to
// the caller through d. Update and insert run in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, d *Draft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE drafts SET title = ?, content = ?, saved_at = ? WHERE id = ?`,
			d.Title, d.Content, d.SavedAt, d.ID)
		if err != nil {
			return fmt.Errorf("failed to update draft: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drafts (id, title, content, saved_at) VALUES (?, ?, ?, ?)`,
			d.ID, d.Title, d.Content, d.SavedAt); err != nil {
			return fmt.Errorf("failed to insert draft: %w", err)
		}
		return nil
	})
}

// Get returns one draft by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Draft, error) {
	query := `SELECT id, title, content, saved_at FROM drafts WHERE id = ?`

	d := &Draft{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Title, &d.Content, &d.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// List returns all drafts, most recently saved first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Draft, error) {
	query := `SELECT id, title, content, saved_at FROM drafts ORDER BY saved_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select drafts: %w", err)
	}
	defer rows.Close()

	var result []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.SavedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a draft. Deleting a draft that does not exist surfaces as
// ErrNotFound.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("draft %s: %w", id, common.ErrNotFound)
	}
	return nil
}
