package services

import (
	"context"
	"encoding/json"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/internal/infrastructure/replication"
	"github.com/fiberdash/backend/usecase"
)

// ReplicationBridge adapts the replicator to the queue port the session
// manager depends on.
type ReplicationBridge struct {
	replicator *Replicator
}

func NewReplicationBridge(replicator *Replicator) *ReplicationBridge {
	return &ReplicationBridge{replicator: replicator}
}

func (b *ReplicationBridge) QueueSave(ctx context.Context, backend string, record *domain.SessionRecord) error {
	if b.replicator == nil || record == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return b.replicator.Enqueue(replication.Item{
		Backend:   backend,
		SessionID: record.SessionID,
		Operation: replication.OperationSave,
		Data:      payload,
	})
}

func (b *ReplicationBridge) QueueDelete(ctx context.Context, backend string, sessionID string) error {
	if b.replicator == nil || sessionID == "" {
		return domain.ErrInvalidPayload
	}
	return b.replicator.Enqueue(replication.Item{
		Backend:   backend,
		SessionID: sessionID,
		Operation: replication.OperationDelete,
	})
}

var _ usecase.ReplicationQueue = (*ReplicationBridge)(nil)
