package middleware

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/fingerprint"
	"github.com/fiberdash/backend/pkg/httpcontext"
)

// SessionLoader is the slice of the session manager the gate needs.
type SessionLoader interface {
	Load(ctx context.Context, hint string) (*domain.SessionRecord, error)
}

// SessionGate resolves the caller's session before protected handlers run.
// The resolved identity travels to handlers through request headers, which
// also strips any identity headers a client tried to smuggle in.
func SessionGate(sessions SessionLoader, adapter *httpcontext.Adapter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del("X-Session-User")
			ctx.Request.Header.Del("X-Session-Role")
			ctx.Request.Header.Del("X-Session-ID")

			stdCtx, cancel := adapter.Attach(ctx)
			defer cancel()
			fp := fingerprint.Compute(
				httpcontext.UserAgentFrom(stdCtx),
				httpcontext.RemoteAddrFrom(stdCtx),
				time.Now())
			stdCtx = httpcontext.WithFingerprint(stdCtx, fp)

			record, err := sessions.Load(stdCtx, "")
			if err != nil {
				logger.Warn("session gate rejected request", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			if record == nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			ctx.Request.Header.Set("X-Session-User", record.Username)
			ctx.Request.Header.Set("X-Session-Role", record.Role)
			ctx.Request.Header.Set("X-Session-ID", record.SessionID)

			next(ctx)
		}
	}
}
