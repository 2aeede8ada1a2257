package domain

import "time"

// Audit event names emitted by the session layer.
const (
	AuditSessionCreated      = "session_created"
	AuditSessionRefreshed    = "session_refreshed"
	AuditSessionRevoked      = "session_revoked"
	AuditSessionExpired      = "session_expired"
	AuditFingerprintMismatch = "fingerprint_mismatch"
	AuditForgedPayload       = "forged_payload"
)

// AuditEvent records a security-relevant session event for later review.
type AuditEvent struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id,omitempty"`
	Username   string            `json:"username,omitempty"`
	Name       string            `json:"name"`
	Backend    string            `json:"backend,omitempty"`
	Suspicious bool              `json:"suspicious"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (e *AuditEvent) Touch() {
	if e == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
}
