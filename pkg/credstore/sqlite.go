package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed credential store.
type SQLiteStore struct {
	db     *sql.DB
	hasher Hasher
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the credential database and runs
// migrations. A nil hasher defaults to Argon2Hasher.
func OpenSQLite(path string, hasher Hasher) (*SQLiteStore, error) {
	if hasher == nil {
		hasher = Argon2Hasher{}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: set busy_timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS credentials (
		username   TEXT NOT NULL PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 32),
		secret     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: migrate: %w", err)
	}

	return &SQLiteStore{db: db, hasher: hasher}, nil
}

// Verify reports whether the secret matches the stored credential.
func (s *SQLiteStore) Verify(ctx context.Context, username, secret string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		"SELECT secret FROM credentials WHERE username = ?", username,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credstore: verify %q: %w", username, err)
	}
	return s.hasher.Compare(secret, stored)
}

// Create inserts a new credential pair. The PRIMARY KEY constraint is the
// race arbiter: of two concurrent Creates for one username exactly one
// succeeds.
func (s *SQLiteStore) Create(ctx context.Context, username, secret string) (bool, error) {
	stored, err := s.hasher.Hash(secret)
	if err != nil {
		return false, fmt.Errorf("credstore: hash secret: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO credentials (username, secret) VALUES (?, ?)", username, stored)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("credstore: create %q: %w", username, err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
