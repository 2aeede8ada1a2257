package cookie

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
)

type fakeClient struct {
	cookies map[string]string
	headers map[string]string
	params  map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		cookies: map[string]string{},
		headers: map[string]string{},
		params:  map[string]string{},
	}
}

func (c *fakeClient) Cookie(name string) string { return c.cookies[name] }
func (c *fakeClient) SetCookie(name, value string, _ time.Time) {
	c.cookies[name] = value
}
func (c *fakeClient) ClearCookie(name string)        { delete(c.cookies, name) }
func (c *fakeClient) Header(name string) string      { return c.headers[name] }
func (c *fakeClient) SetHeader(name, value string)   { c.headers[name] = value }
func (c *fakeClient) QueryParam(name string) string  { return c.params[name] }

func clientCtx(client httpcontext.Client) context.Context {
	return httpcontext.WithClient(context.Background(), client)
}

func record(now time.Time) *domain.SessionRecord {
	return &domain.SessionRecord{
		SessionID:      "sess-cookie-1",
		Username:       "alice",
		Email:          "a@x.com",
		Role:           "User",
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
		Fingerprint:    "fpabc",
	}
}

func TestCookieRoundTrip(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)
	now := time.Now().Truncate(time.Second)

	rec := record(now)
	require.NoError(t, backend.Save(ctx, rec))
	require.NotEmpty(t, client.cookies[DefaultCookieName])

	loaded, err := backend.Load(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, rec.SessionID, loaded.SessionID)
	require.Equal(t, rec.Identity(), loaded.Identity())
	require.Equal(t, rec.Fingerprint, loaded.Fingerprint)
	require.True(t, loaded.ExpiresAt.Equal(rec.ExpiresAt))
	require.True(t, loaded.IsValid(now))
}

func TestForgedCookieTreatedAsAbsent(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)

	require.NoError(t, backend.Save(ctx, record(time.Now())))

	// Flip part of the signature; the payload still looks plausible.
	token := client.cookies[DefaultCookieName]
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Repeat("x", len(parts[2]))
	client.cookies[DefaultCookieName] = strings.Join(parts, ".")

	loaded, err := backend.Load(ctx, "")
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Delete-and-skip: the forged cookie is gone.
	require.Empty(t, client.cookies[DefaultCookieName])
}

func TestCookieSignedWithDifferentKeyTreatedAsAbsent(t *testing.T) {
	writer := NewSessionBackend("", []byte("another-key-entirely-not-the-one"))
	reader := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)

	require.NoError(t, writer.Save(ctx, record(time.Now())))

	loaded, err := reader.Load(ctx, "")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestExpiredCookieTreatedAsAbsent(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)

	rec := record(time.Now().Add(-2 * time.Hour))
	rec.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, backend.Save(ctx, rec))

	loaded, err := backend.Load(ctx, "")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestTombstoneRoundTrips(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)
	now := time.Now()

	rec := record(now)
	rec.SignedOut = true
	require.NoError(t, backend.Save(ctx, rec))

	loaded, err := backend.Load(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.SignedOut)
	require.False(t, loaded.IsValid(now))
}

func TestMissingClientIsUnavailable(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	ctx := context.Background()

	err := backend.Save(ctx, record(time.Now()))
	require.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))

	_, err = backend.Load(ctx, "")
	require.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))

	err = backend.Delete(ctx, "")
	require.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
}

func TestDeleteClearsCookie(t *testing.T) {
	backend := NewSessionBackend("", []byte("0123456789abcdef0123456789abcdef"))
	client := newFakeClient()
	ctx := clientCtx(client)

	require.NoError(t, backend.Save(ctx, record(time.Now())))
	require.NoError(t, backend.Delete(ctx, ""))
	require.NoError(t, backend.Delete(ctx, ""))

	loaded, err := backend.Load(ctx, "")
	require.NoError(t, err)
	require.Nil(t, loaded)
}
