package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/repository"
)

const backendName = "postgres"

type sessionBackend struct {
	pool *pgxpool.Pool
}

// NewSessionBackend returns the Postgres-backed session store. It is the
// highest-reliability backend: the canonical server-side copy of every
// record, the only backend that can enumerate sessions per user, and the one
// the expiry sweep runs against.
func NewSessionBackend(pool *pgxpool.Pool) repository.SessionBackend {
	return &sessionBackend{pool: pool}
}

func (b *sessionBackend) Name() string             { return backendName }
func (b *sessionBackend) Tier() domain.BackendTier { return domain.TierHigh }

func (b *sessionBackend) Save(ctx context.Context, record *domain.SessionRecord) error {
	if record == nil || record.SessionID == "" {
		return domain.Rejected(backendName, domain.ErrInvalidPayload)
	}

	const query = `
	INSERT INTO user_sessions
		(session_id, username, email, role, fingerprint, metadata,
		 created_at, last_activity_at, expires_at, signed_out)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (session_id) DO UPDATE
	SET last_activity_at = EXCLUDED.last_activity_at,
		expires_at = EXCLUDED.expires_at,
		signed_out = EXCLUDED.signed_out,
		fingerprint = EXCLUDED.fingerprint,
		metadata = EXCLUDED.metadata
	`

	_, err := b.pool.Exec(ctx, query,
		record.SessionID,
		record.Username,
		record.Email,
		record.Role,
		record.Fingerprint,
		marshalMap(record.Metadata),
		record.CreatedAt,
		record.LastActivityAt,
		record.ExpiresAt,
		record.SignedOut,
	)
	if err != nil {
		return domain.Unavailable(backendName, err)
	}
	return nil
}

func (b *sessionBackend) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		// Postgres can only address by key; without one there is nothing to load.
		return nil, nil
	}

	const query = `
	SELECT session_id, username, email, role, fingerprint, metadata,
	       created_at, last_activity_at, expires_at, signed_out
	FROM user_sessions
	WHERE session_id = $1
	`

	var (
		record   domain.SessionRecord
		metadata []byte
	)
	err := b.pool.QueryRow(ctx, query, sessionID).Scan(
		&record.SessionID,
		&record.Username,
		&record.Email,
		&record.Role,
		&record.Fingerprint,
		&metadata,
		&record.CreatedAt,
		&record.LastActivityAt,
		&record.ExpiresAt,
		&record.SignedOut,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Unavailable(backendName, err)
	}

	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &record.Metadata)
	}
	return &record, nil
}

func (b *sessionBackend) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := b.pool.Exec(ctx, `DELETE FROM user_sessions WHERE session_id = $1`, sessionID); err != nil {
		return domain.Unavailable(backendName, err)
	}
	return nil
}

func (b *sessionBackend) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at <= $1 OR signed_out`

	tag, err := b.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, domain.Unavailable(backendName, err)
	}
	return int(tag.RowsAffected()), nil
}

// ActiveIDs lists live session IDs for a user, oldest first so the continuity
// manager can evict from the front when enforcing the per-user cap.
func (b *sessionBackend) ActiveIDs(ctx context.Context, username string) ([]string, error) {
	const query = `
	SELECT session_id
	FROM user_sessions
	WHERE username = $1 AND NOT signed_out AND expires_at > NOW()
	ORDER BY created_at ASC
	`

	rows, err := b.pool.Query(ctx, query, username)
	if err != nil {
		return nil, domain.Unavailable(backendName, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Unavailable(backendName, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(backendName, err)
	}
	return ids, nil
}

func (b *sessionBackend) ActiveCount(ctx context.Context, username string) (int, error) {
	const query = `
	SELECT COUNT(*)
	FROM user_sessions
	WHERE username = $1 AND NOT signed_out AND expires_at > NOW()
	`

	var count int
	if err := b.pool.QueryRow(ctx, query, username).Scan(&count); err != nil {
		return 0, domain.Unavailable(backendName, err)
	}
	return count, nil
}

// DeleteAllForUser tombstones every live session of a user rather than
// deleting outright, so lagging copies elsewhere cannot be read back as valid.
func (b *sessionBackend) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	const query = `
	UPDATE user_sessions
	SET signed_out = TRUE
	WHERE username = $1 AND NOT signed_out
	`

	tag, err := b.pool.Exec(ctx, query, username)
	if err != nil {
		return 0, domain.Unavailable(backendName, err)
	}
	return int(tag.RowsAffected()), nil
}
