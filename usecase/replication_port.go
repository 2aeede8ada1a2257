package usecase

import (
	"context"

	"github.com/fiberdash/backend/domain"
)

// ReplicationQueue abstracts the pending-write queue so the session
// manager stays storage-agnostic. Writes queued here are replayed
// against the named backend once it reports healthy again.
type ReplicationQueue interface {
	QueueSave(ctx context.Context, backend string, record *domain.SessionRecord) error
	QueueDelete(ctx context.Context, backend string, sessionID string) error
}
