// Package router registers the HTTP routes of the service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/handler"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints.  Credential-taking routes
// sit behind limiter; logout and /v1/me require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenValidator, log logging.Logger, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh, limiter)

	protected := requireUser(v, log)
	g.POST("/logout", a.Logout, protected...)
	e.GET("/v1/me", a.Me, protected...)
}

// RegisterProfile registers profile reads (anonymous allowed, cached) and the
// profile mutations of the authenticated account.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, v middleware.TokenValidator, log logging.Logger, cache echo.MiddlewareFunc) {
	e.GET("/v1/profiles/:id", p.GetProfile, middleware.Authenticate(v, log, middleware.Optional), cache)

	g := e.Group("/v1/profile", requireUser(v, log)...)
	g.PUT("", p.UpdateProfile)
	g.PUT("/password", p.ChangePassword)
	g.DELETE("", p.Withdraw)
}

func requireUser(v middleware.TokenValidator, log logging.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.Authenticate(v, log, middleware.Required),
		middleware.RequireAuthority(auth.AuthorityUser),
	}
}
