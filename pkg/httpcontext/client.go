package httpcontext

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// Client is the request-scoped carrier for client-held session media. It
// abstracts the three places a browser can echo state back to the server:
// cookies, a header pair mirroring browser local storage, and URL query
// parameters. Backends bound to the current client read the inbound request
// and write the outbound response through this interface.
//
// A Client only exists inside an HTTP request. Background jobs run without
// one, and client-bound backends must report themselves unavailable there.
type Client interface {
	Cookie(name string) string
	SetCookie(name, value string, expires time.Time)
	ClearCookie(name string)

	Header(name string) string
	SetHeader(name, value string)

	QueryParam(name string) string
}

type requestClient struct {
	req *fasthttp.RequestCtx
}

// NewClient wraps a fasthttp request as a session media carrier.
func NewClient(req *fasthttp.RequestCtx) Client {
	return &requestClient{req: req}
}

func (c *requestClient) Cookie(name string) string {
	return string(c.req.Request.Header.Cookie(name))
}

func (c *requestClient) SetCookie(name, value string, expires time.Time) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(name)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	if !expires.IsZero() {
		cookie.SetExpire(expires)
	}
	c.req.Response.Header.SetCookie(cookie)
}

func (c *requestClient) ClearCookie(name string) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(name)
	cookie.SetValue("")
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetExpire(fasthttp.CookieExpireDelete)
	c.req.Response.Header.SetCookie(cookie)
}

func (c *requestClient) Header(name string) string {
	return string(c.req.Request.Header.Peek(name))
}

func (c *requestClient) SetHeader(name, value string) {
	c.req.Response.Header.Set(name, value)
}

func (c *requestClient) QueryParam(name string) string {
	return string(c.req.QueryArgs().Peek(name))
}

// WithClient attaches a client carrier to the context.
func WithClient(ctx context.Context, client Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, keyClient, client)
}

// ClientFrom extracts the client carrier, if the context belongs to a request.
func ClientFrom(ctx context.Context) (Client, bool) {
	if ctx == nil {
		return nil, false
	}
	client, ok := ctx.Value(keyClient).(Client)
	return client, ok
}
