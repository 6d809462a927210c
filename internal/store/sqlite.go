package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kmatsuda/textlens/pkg/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tokens (
    value       TEXT PRIMARY KEY,
    user_id     INTEGER NOT NULL,
    created_at  TEXT NOT NULL,
    is_admin    INTEGER NOT NULL DEFAULT 0,
    is_valid    INTEGER NOT NULL DEFAULT 1,
    usage_count INTEGER NOT NULL DEFAULT 0,
    char_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tokens_user_id ON tokens (user_id);
`

// SQLiteStore implements the Store interface on a local SQLite file, for
// single-node deployments without a Postgres instance. SQLite allows one
// writer at a time, which is what serializes concurrent counter updates
// here; the connection pool is capped at one to avoid SQLITE_BUSY churn.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) GetToken(ctx context.Context, value string) (*models.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, user_id, created_at, is_admin, is_valid, usage_count, char_count
		 FROM tokens WHERE value = ?`, value)
	return scanSQLiteToken(row.Scan)
}

func (s *SQLiteStore) IssueToken(ctx context.Context, userID int64, value string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin issue token: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tokens SET is_valid = 0 WHERE user_id = ? AND is_valid = 1`, userID)
	if err != nil {
		return false, fmt.Errorf("invalidate prior tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("invalidate prior tokens: %w", err)
	}
	reissued := affected > 0

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (value, user_id, created_at, is_admin, is_valid)
		 VALUES (?, ?, ?, 0, 1)`, value, userID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return false, ErrDuplicateToken
		}
		return false, fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit issue token: %w", err)
	}
	return reissued, nil
}

func (s *SQLiteStore) DeleteToken(ctx context.Context, value string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE value = ?`, value)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, value string, charDelta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET usage_count = usage_count + 1, char_count = char_count + ?
		 WHERE value = ? AND is_valid = 1`, charDelta, value)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListTokenStats(ctx context.Context) ([]*models.Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, user_id, created_at, is_admin, is_valid, usage_count, char_count
		 FROM tokens ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		t, err := scanSQLiteToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// scanSQLiteToken adapts a row scan: timestamps are stored as RFC 3339 text
// and booleans as integers.
func scanSQLiteToken(scan func(dest ...any) error) (*models.Token, error) {
	var t models.Token
	var createdAt string
	var isAdmin, isValid int
	err := scan(&t.Value, &t.UserID, &createdAt, &isAdmin, &isValid, &t.UsageCount, &t.CharCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse token created_at: %w", err)
	}
	t.IsAdmin = isAdmin != 0
	t.IsValid = isValid != 0
	return &t, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
