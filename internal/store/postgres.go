package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kmatsuda/textlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. Counter updates
// ride on row-level locking, so concurrent RecordUsage calls on the same
// token serialize in the database while unrelated tokens proceed in parallel.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetToken(ctx context.Context, value string) (*models.Token, error) {
	var t models.Token
	err := s.pool.QueryRow(ctx,
		`SELECT value, user_id, created_at, is_admin, is_valid, usage_count, char_count
		 FROM tokens WHERE value = $1`, value,
	).Scan(&t.Value, &t.UserID, &t.CreatedAt, &t.IsAdmin, &t.IsValid, &t.UsageCount, &t.CharCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) IssueToken(ctx context.Context, userID int64, value string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin issue token: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE tokens SET is_valid = FALSE WHERE user_id = $1 AND is_valid`, userID)
	if err != nil {
		return false, fmt.Errorf("invalidate prior tokens: %w", err)
	}
	reissued := tag.RowsAffected() > 0

	_, err = tx.Exec(ctx,
		`INSERT INTO tokens (value, user_id, created_at, is_admin, is_valid)
		 VALUES ($1, $2, NOW(), FALSE, TRUE)`, value, userID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, ErrDuplicateToken
		}
		return false, fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit issue token: %w", err)
	}
	return reissued, nil
}

func (s *PostgresStore) DeleteToken(ctx context.Context, value string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE value = $1`, value)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, value string, charDelta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET usage_count = usage_count + 1, char_count = char_count + $2
		 WHERE value = $1 AND is_valid`, value, charDelta)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTokenStats(ctx context.Context) ([]*models.Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT value, user_id, created_at, is_admin, is_valid, usage_count, char_count
		 FROM tokens ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		var t models.Token
		if err := rows.Scan(&t.Value, &t.UserID, &t.CreatedAt, &t.IsAdmin, &t.IsValid,
			&t.UsageCount, &t.CharCount); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
