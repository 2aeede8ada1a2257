package repository

import (
	"context"

	"github.com/fiberdash/backend/domain"
)

type AuditFilter struct {
	Username   string
	Name       string
	Suspicious bool
	Limit      int
	Offset     int
}

// AuditRepository persists security-relevant session events. Appends are
// best-effort: audit failures never block the session operation itself.
type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error)
}
