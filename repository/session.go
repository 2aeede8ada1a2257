package repository

import (
	"context"
	"time"

	"github.com/fiberdash/backend/domain"
)

// SessionBackend is one storage medium capable of holding a session record:
// a database table, a cache, a signed cookie, a client-held blob, or a URL
// reference. Implementations classify every failure as either
// domain.Unavailable (try the next backend) or domain.Rejected (malformed
// record, do not retry); raw transport errors never cross this boundary.
type SessionBackend interface {
	// Name identifies the backend in logs and replication queue entries.
	Name() string

	// Tier declares the reliability class used for backend ordering.
	Tier() domain.BackendTier

	// Save upserts a record keyed by SessionID.
	Save(ctx context.Context, record *domain.SessionRecord) error

	// Load fetches a record. sessionID may be empty for client-bound media
	// (cookie, local store), which can only address the current client.
	// Absence is (nil, nil), never an error.
	Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// Delete removes a record. Deleting an absent key is success.
	Delete(ctx context.Context, sessionID string) error

	// SweepExpired bulk-deletes records with expires_at <= now or a signed-out
	// tombstone. Media that hold at most one client-bound record report 0.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionIndex is an optional capability of backends that can enumerate
// sessions per user, used for concurrent-session caps and "logout everywhere".
type SessionIndex interface {
	ActiveIDs(ctx context.Context, username string) ([]string, error)
	ActiveCount(ctx context.Context, username string) (int, error)
	DeleteAllForUser(ctx context.Context, username string) (int, error)
}

// HintSource is an optional capability of reference-only media (URL query
// parameter) that cannot hold a record but can surface a session ID for the
// keyed backends to resolve.
type HintSource interface {
	SessionHint(ctx context.Context) string
}
