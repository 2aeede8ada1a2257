package cookie

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/repository"
)

const backendName = "cookie"

// DefaultCookieName is the cookie the session blob travels in.
const DefaultCookieName = "fiberdash_session"

type sessionClaims struct {
	jwt.RegisteredClaims
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	Role         string            `json:"role"`
	SignedOut    bool              `json:"signed_out,omitempty"`
	Fingerprint  string            `json:"fp,omitempty"`
	LastActivity int64             `json:"last_activity,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type sessionBackend struct {
	cookieName string
	secret     []byte
}

// NewSessionBackend creates the cookie-held session store. The record is
// serialized as an HS256-signed token, so tampering with the payload breaks
// the keyed integrity check and the cookie reads as absent. The cookie can
// only address the current client; lookup keys are ignored.
func NewSessionBackend(cookieName string, secret []byte) repository.SessionBackend {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &sessionBackend{cookieName: cookieName, secret: secret}
}

func (b *sessionBackend) Name() string             { return backendName }
func (b *sessionBackend) Tier() domain.BackendTier { return domain.TierMedium }

func (b *sessionBackend) Save(ctx context.Context, record *domain.SessionRecord) error {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	if record == nil || record.SessionID == "" {
		return domain.Rejected(backendName, domain.ErrInvalidPayload)
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.SessionID,
			IssuedAt:  jwt.NewNumericDate(record.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
		Username:     record.Username,
		Email:        record.Email,
		Role:         record.Role,
		SignedOut:    record.SignedOut,
		Fingerprint:  record.Fingerprint,
		LastActivity: record.LastActivityAt.Unix(),
		Metadata:     record.Metadata,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return domain.Rejected(backendName, err)
	}

	client.SetCookie(b.cookieName, token, record.ExpiresAt)
	return nil
}

func (b *sessionBackend) Load(ctx context.Context, _ string) (*domain.SessionRecord, error) {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return nil, domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}

	raw := client.Cookie(b.cookieName)
	if raw == "" {
		return nil, nil
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return b.secret, nil
	})
	if err != nil || !token.Valid {
		// Forged, corrupt, or expired cookie: delete-and-skip, never an error
		// and never a usable record.
		client.ClearCookie(b.cookieName)
		return nil, nil
	}

	record := &domain.SessionRecord{
		SessionID:   claims.ID,
		Username:    claims.Username,
		Email:       claims.Email,
		Role:        claims.Role,
		SignedOut:   claims.SignedOut,
		Fingerprint: claims.Fingerprint,
		Metadata:    claims.Metadata,
	}
	if claims.IssuedAt != nil {
		record.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		record.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.LastActivity > 0 {
		record.LastActivityAt = time.Unix(claims.LastActivity, 0)
	}
	return record, nil
}

func (b *sessionBackend) Delete(ctx context.Context, _ string) error {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	client.ClearCookie(b.cookieName)
	return nil
}

// SweepExpired is a no-op: the cookie holds at most one record, implicitly
// tied to the current client.
func (b *sessionBackend) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
