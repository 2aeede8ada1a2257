package localstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/repository"
)

const backendName = "localstore"

// DefaultHeaderName is the header pair mirroring browser local storage: the
// dashboard front end persists the response value under this key and echoes
// it back on the next request. An empty response value tells it to remove
// the entry.
const DefaultHeaderName = "X-Fiberdash-Session-Store"

type sessionBackend struct {
	headerName string
	secret     []byte
}

// NewSessionBackend creates the local-storage-held session store. The record
// travels as base64 JSON sealed with a keyed HMAC-SHA256; a blob failing the
// seal reads as absent. Like the cookie, it addresses only the current client.
func NewSessionBackend(headerName string, secret []byte) repository.SessionBackend {
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	return &sessionBackend{headerName: headerName, secret: secret}
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

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.Rejected(backendName, err)
	}

	client.SetHeader(b.headerName, b.seal(payload))
	return nil
}

func (b *sessionBackend) Load(ctx context.Context, _ string) (*domain.SessionRecord, error) {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return nil, domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}

	blob := client.Header(b.headerName)
	if blob == "" {
		return nil, nil
	}

	payload, ok := b.open(blob)
	if !ok {
		// Broken seal: tell the client to drop the blob and report absence.
		client.SetHeader(b.headerName, "")
		return nil, nil
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		client.SetHeader(b.headerName, "")
		return nil, nil
	}
	return &record, nil
}

func (b *sessionBackend) Delete(ctx context.Context, _ string) error {
	client, ok := httpcontext.ClientFrom(ctx)
	if !ok {
		return domain.Unavailable(backendName, domain.ErrBackendUnavailable)
	}
	client.SetHeader(b.headerName, "")
	return nil
}

// SweepExpired is a no-op: at most one record, tied to the current client.
func (b *sessionBackend) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (b *sessionBackend) seal(payload []byte) string {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(payload) +
		"." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (b *sessionBackend) open(blob string) ([]byte, bool) {
	body, sig, ok := strings.Cut(blob, ".")
	if !ok {
		return nil, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, false
	}
	provided, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, false
	}

	mac := hmac.New(sha256.New, b.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return nil, false
	}
	return payload, true
}
