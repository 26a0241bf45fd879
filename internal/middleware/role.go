package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAuthority rejects with 403 unless the principal holds every named
// authority.  A request without a principal is rejected with 401, so this
// must run after Authenticate.
func RequireAuthority(names ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication failed"})
			}
			for _, n := range names {
				if !p.HasAuthority(n) {
					return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
				}
			}
			return next(c)
		}
	}
}
