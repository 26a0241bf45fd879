package middleware

// identity.go holds the helpers that read the authenticated principal back
// out of the echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
)

const principalKey = "principal"

// PrincipalFrom returns the principal set by Authenticate.
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(principalKey).(auth.Principal)
	return p, ok
}

// accountID returns the authenticated account id or "anon".
func accountID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.AccountID != "" {
		return p.AccountID
	}
	return "anon"
}
