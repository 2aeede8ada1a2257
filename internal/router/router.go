package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fiberdash/backend/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, gate func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Public auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)

	// Session-gated routes
	r.POST("/api/v1/auth/logout", gate(handlers.Auth.Logout))
	r.POST("/api/v1/auth/refresh", gate(handlers.Auth.Refresh))
	r.GET("/api/v1/auth/whoami", gate(handlers.Auth.Whoami))
	r.GET("/api/v1/auth/sessions", gate(handlers.Auth.Sessions))
	r.DELETE("/api/v1/auth/sessions/{id}", gate(handlers.Auth.RevokeSession))
	r.POST("/api/v1/auth/sessions/revoke-others", gate(handlers.Auth.RevokeOthers))

	r.GET("/api/v1/profile", gate(handlers.Profile.Get))
	r.PUT("/api/v1/profile", gate(handlers.Profile.Update))
	r.POST("/api/v1/profile/password", gate(handlers.Profile.ChangePassword))

	return r
}
