package urlparam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/repository"
)

const backendName = "urlparam"

const (
	// DefaultParamName is the query parameter the reference travels in.
	DefaultParamName = "session_ref"
	// DefaultRefHeader is the response header carrying the value the client
	// should append as the query parameter on subsequent navigations.
	DefaultRefHeader = "X-Fiberdash-Session-Ref"
)

// reference is the only thing this backend ever stores. Anyone holding the
// URL can read it, so it carries no identity claims: just an opaque pointer
// the keyed backends can resolve.
type reference struct {
	SessionID string `json:"sid"`
}

type sessionBackend struct {
	paramName string
	refHeader string
}

// NewSessionBackend creates the URL-parameter continuity backend. It survives
// page reloads that wipe cookies and local storage, which makes it the most
// refresh-resilient medium and simultaneously the least trustworthy one.
func NewSessionBackend(paramName, refHeader string) repository.SessionBackend {
	if paramName == "" {
		paramName = DefaultParamName
	}
	if refHeader == "" {
		refHeader = DefaultRefHeader
	}
	return &sessionBackend{paramName: paramName, refHeader: refHeader}
}

func (b *sessionBackend) Name() string             { return backendName }
func (b *sessionBackend) Tier() domain.BackendTier { return domain.TierLow }

func (b *sessionBackend) Save(ctx context.Context, record *domain.SessionRecord) error {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	if record == nil || record.SessionID == "" {
		return domain.Rejected(backendName, domain.ErrInvalidPayload)
	}
	if record.SignedOut {
		// A tombstone reference would only advertise a dead session ID.
		client.SetHeader(b.refHeader, "")
		return nil
	}

	payload, err := json.Marshal(reference{SessionID: record.SessionID})
	if err != nil {
		return domain.Rejected(backendName, err)
	}

	client.SetHeader(b.refHeader, base64.RawURLEncoding.EncodeToString(payload))
	return nil
}

// Load always reports absence: the URL holds a reference, never a record.
// The continuity manager resolves the reference through SessionHint instead.
func (b *sessionBackend) Load(ctx context.Context, _ string) (*domain.SessionRecord, error) {
	if _, ok := httpcontext.ClientFrom(ctx); !ok {
		return nil, domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	return nil, nil
}

func (b *sessionBackend) Delete(ctx context.Context, _ string) error {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	client.SetHeader(b.refHeader, "")
	return nil
}

// SweepExpired is a no-op: one reference per client, nothing to scan.
func (b *sessionBackend) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// SessionHint decodes the inbound query parameter into a session ID for the
// keyed backends to resolve. Garbage decodes to an empty hint.
func (b *sessionBackend) SessionHint(ctx context.Context) string {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return ""
	}

	raw := client.QueryParam(b.paramName)
	if raw == "" {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return ""
	}

	var ref reference
	if err := json.Unmarshal(payload, &ref); err != nil {
		return ""
	}
	return ref.SessionID
}
