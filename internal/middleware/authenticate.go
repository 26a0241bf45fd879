package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/logging"
)

// Mode selects what happens to a request without a valid access token.
type Mode int

const (
	// Required rejects the request with 401.
	Required Mode = iota
	// Optional lets it through as anonymous.
	Optional
)

// AccessCookie is read when no Authorization header is present.
const AccessCookie = "access_token"

// TokenValidator verifies an access token.
type TokenValidator interface {
	Validate(token string) (auth.Principal, error)
}

// Authenticate verifies the bearer access token and attaches the resulting
// Principal to both the echo context and the request context.  It never
// touches the credential store.  All verification failures produce the same
// response body; the distinct reason only goes to the log.
func Authenticate(v TokenValidator, log logging.Logger, mode Mode) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := v.Validate(accessToken(c.Request()))
			if err != nil {
				if mode == Optional {
					return next(c)
				}
				log.Warn(c.Request().Context(), "access token rejected",
					"reason", err.Error(), "path", c.Path())
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication failed"})
			}

			c.Set(principalKey, p)
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

func accessToken(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if ck, err := r.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}
