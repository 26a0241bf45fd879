package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/middleware"
	"github.com/j0462/newspeed/internal/model"
)

// ProfileStore reads and edits the public profile fields.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (model.Account, error)
	UpdateProfile(ctx context.Context, id, displayName, email, bio string) error
}

// ProfileHandler serves profile reads and the credential-changing profile
// endpoints.  Invalidate, when set, drops a cached profile response after
// it changed.
type ProfileHandler struct {
	Profiles   ProfileStore
	Lifecycle  AccountLifecycle
	Log        logging.Logger
	Invalidate func(ctx context.Context, path string) error
}

func NewProfileHandler(p ProfileStore, l AccountLifecycle, log logging.Logger, invalidate func(context.Context, string) error) *ProfileHandler {
	return &ProfileHandler{Profiles: p, Lifecycle: l, Log: log, Invalidate: invalidate}
}

type updateProfileReq struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Bio         string `json:"bio"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
type withdrawReq struct {
	Password string `json:"password"`
}

func profilePath(id string) string { return "/v1/profiles/" + id }

func (h *ProfileHandler) invalidate(ctx context.Context, id string) {
	if h.Invalidate == nil {
		return
	}
	if err := h.Invalidate(ctx, profilePath(id)); err != nil {
		h.Log.Warn(ctx, "profile cache invalidation failed", "account_id", id, "error", err.Error())
	}
}

// GetProfile: public view of any live account.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest(c, "id required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acct, err := h.Profiles.FindByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, acct.Profile())
}

// UpdateProfile: edit display name, email and bio of the caller.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, auth.ErrUnauthenticated)
	}
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = strings.TrimSpace(req.Email)
	if req.DisplayName == "" {
		return badRequest(c, "display_name required")
	}
	if err := auth.ValidateEmail(req.Email); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Profiles.UpdateProfile(ctx, p.AccountID, req.DisplayName, req.Email, req.Bio); err != nil {
		return writeError(c, h.Log, err)
	}
	h.invalidate(ctx, p.AccountID)

	acct, err := h.Profiles.FindByID(ctx, p.AccountID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, acct)
}

// ChangePassword: requires the current password; ends refreshable sessions.
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, auth.ErrUnauthenticated)
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest(c, "current_password/new_password required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Lifecycle.ChangePassword(ctx, p.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Withdraw: requires the current password; the account disappears from every
// lookup.
func (h *ProfileHandler) Withdraw(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, auth.ErrUnauthenticated)
	}
	var req withdrawReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return badRequest(c, "password required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Lifecycle.Withdraw(ctx, p.AccountID, req.Password); err != nil {
		return writeError(c, h.Log, err)
	}
	h.invalidate(ctx, p.AccountID)
	return c.NoContent(http.StatusNoContent)
}
