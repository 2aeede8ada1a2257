package domain

import "time"

// BackendTier classifies how much trust the continuity manager places in a
// storage backend when reconciling conflicting copies of a session.
type BackendTier int

const (
	// TierHigh marks server-side persisted stores (database, cache).
	TierHigh BackendTier = iota
	// TierMedium marks client-held but integrity-checked media (cookie, local store).
	TierMedium
	// TierLow marks reference-only media visible to anyone holding the URL.
	TierLow
)

func (t BackendTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// Identity carries the claims copied into a session at login time.
// A role change requires a new session; the copy is never updated in place.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// SessionRecord is the authoritative description of one logged-in browser
// session. Backends hold denormalized copies; the most recently written copy
// wins on conflict.
type SessionRecord struct {
	SessionID string `json:"session_id"`

	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	// SignedOut is a tombstone: a signed-out record stays invalid even if a
	// clock rollback would otherwise make it look unexpired.
	SignedOut bool `json:"signed_out"`

	// Fingerprint is a soft tamper signal (hash of client-observable data),
	// never sole authorization.
	Fingerprint string `json:"fingerprint,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Identity returns the claims embedded in the record.
func (s *SessionRecord) Identity() Identity {
	if s == nil {
		return Identity{}
	}
	return Identity{Username: s.Username, Email: s.Email, Role: s.Role}
}

// Validate is the single source of truth for session validity. Every backend
// loader and the continuity manager defer to it; none re-implements expiry or
// tombstone checks. now == ExpiresAt counts as expired.
func Validate(s *SessionRecord, now time.Time) error {
	if s == nil {
		return ErrSessionNotFound
	}
	if s.SessionID == "" || s.Username == "" || s.Email == "" || s.Role == "" {
		return ErrMissingIdentity
	}
	if s.SignedOut {
		return ErrSessionSignedOut
	}
	if now.IsZero() {
		now = time.Now()
	}
	if !now.Before(s.ExpiresAt) {
		return ErrSessionExpired
	}
	return nil
}

// IsValid is the boolean view of Validate.
func (s *SessionRecord) IsValid(now time.Time) bool {
	return Validate(s, now) == nil
}

// Extend moves the expiry to now + extension and records the activity.
func (s *SessionRecord) Extend(now time.Time, extension time.Duration) {
	if s == nil {
		return
	}
	s.LastActivityAt = now
	s.ExpiresAt = now.Add(extension)
}
