package drafts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/mekod/ledger/internal/drafts/migrations"
)

// Store owns the drafts database connection and its repository.
type Store struct {
	DB     *sql.DB
	Drafts *SQLiteRepository
}

// RunMigrations brings the schema up to date. Safe to run repeatedly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the drafts database at dsn and migrates
// it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, Drafts: NewSQLiteRepository(db)}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}
