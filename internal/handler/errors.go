package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/repository"
)

// storeTimeout bounds every request's credential store work.
const storeTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// writeError maps an operation outcome to a status code.  Every token
// failure and revocation gets the same 401 body.
func writeError(c echo.Context, log logging.Logger, err error) error {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		status, msg = http.StatusBadRequest, "invalid credentials"
	case errors.Is(err, auth.ErrSamePassword):
		status, msg = http.StatusBadRequest, auth.ErrSamePassword.Error()
	case errors.Is(err, auth.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case auth.IsTokenError(err), errors.Is(err, auth.ErrRevoked), errors.Is(err, auth.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, "account not found"
	case errors.Is(err, auth.ErrLoginNameTaken), errors.Is(err, repository.ErrLoginNameExists):
		status, msg = http.StatusConflict, "login name already taken"
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, repository.ErrEmailExists):
		status, msg = http.StatusConflict, "email already taken"
	case errors.Is(err, auth.ErrTransient):
		status, msg = http.StatusServiceUnavailable, "temporarily unavailable, retry later"
	default:
		log.Error(c.Request().Context(), "unhandled error", "path", c.Path(), "error", err.Error())
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
