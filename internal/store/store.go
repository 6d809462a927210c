package store

import (
	"context"
	"errors"

	"github.com/kmatsuda/textlens/pkg/models"
)

var (
	// ErrNotFound means no token row matched the credential.
	ErrNotFound = errors.New("token not found")
	// ErrDuplicateToken means a generated token value collided with an
	// existing row; the caller regenerates and retries.
	ErrDuplicateToken = errors.New("duplicate token value")
)

// Store is the data access interface for token custody and usage accounting.
// Implementations must keep every mutation atomic under concurrent callers;
// usage counters in particular must never lose updates.
type Store interface {
	Ping(ctx context.Context) error

	// GetToken returns the row for a credential, valid or not.
	GetToken(ctx context.Context, value string) (*models.Token, error)

	// IssueToken invalidates any valid tokens for userID and inserts the new
	// value in the same transaction. Reports whether priors were invalidated.
	IssueToken(ctx context.Context, userID int64, value string) (reissued bool, err error)

	// DeleteToken permanently removes the row. ErrNotFound if absent.
	DeleteToken(ctx context.Context, value string) error

	// RecordUsage atomically bumps usage_count by one and char_count by
	// charDelta on the matching valid token. ErrNotFound if no valid row.
	RecordUsage(ctx context.Context, value string, charDelta int) error

	// ListTokenStats returns a snapshot of every token row, including
	// invalidated ones, ordered by creation time ascending.
	ListTokenStats(ctx context.Context) ([]*models.Token, error)
}
