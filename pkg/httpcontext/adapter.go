package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fiberdash/backend/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"

	keyClient      Key = "session_client"
	keyFingerprint Key = "client_fingerprint"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches
// it with request metadata, the client carrier, and the observed fingerprint.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	base := context.Background()

	stdCtx, cancel := context.WithTimeout(base, a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	remote := ""
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		remote = remoteAddr.String()
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remote)
	}
	ua := string(ctx.Request.Header.UserAgent())
	if ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	stdCtx = WithClient(stdCtx, NewClient(ctx))
	return stdCtx, cancel
}

// WithFingerprint records the fingerprint observed for the current client.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	if fp == "" {
		return ctx
	}
	return context.WithValue(ctx, keyFingerprint, fp)
}

// FingerprintFrom returns the observed client fingerprint, if any.
func FingerprintFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	fp, _ := ctx.Value(keyFingerprint).(string)
	return fp
}

// RemoteAddrFrom returns the request's remote address, if attached.
func RemoteAddrFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	addr, _ := ctx.Value(KeyRemoteAddr).(string)
	return addr
}

// UserAgentFrom returns the request's user agent, if attached.
func UserAgentFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(KeyUserAgent).(string)
	return ua
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
