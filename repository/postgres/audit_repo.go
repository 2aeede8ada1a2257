package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/repository"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a Postgres-backed session audit log.
func NewAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	if event.Name == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Touch()

	const query = `
	INSERT INTO session_audit_events (id, session_id, username, name, backend, suspicious, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.SessionID,
		event.Username,
		event.Name,
		event.Backend,
		event.Suspicious,
		marshalMap(event.Metadata),
		event.CreatedAt,
	)
	return err
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	const query = `
	SELECT id, session_id, username, name, backend, suspicious, metadata, created_at
	FROM session_audit_events
	WHERE ($1 = '' OR username = $1)
	  AND ($2 = '' OR name = $2)
	  AND (NOT $3 OR suspicious)
	ORDER BY created_at DESC
	LIMIT $4 OFFSET $5
	`

	rows, err := r.pool.Query(ctx, query,
		filter.Username, filter.Name, filter.Suspicious, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			event    domain.AuditEvent
			metadata []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Username,
			&event.Name,
			&event.Backend,
			&event.Suspicious,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
