package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/middleware"
	"github.com/j0462/newspeed/internal/model"
)

type Authenticator interface {
	Authenticate(ctx context.Context, loginName, password string) (auth.TokenPair, error)
}

type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// AccountLifecycle is the set of credential operations exposed over HTTP.
type AccountLifecycle interface {
	Signup(ctx context.Context, in auth.SignupInput) (model.Account, error)
	ChangePassword(ctx context.Context, accountID, current, next string) error
	Withdraw(ctx context.Context, accountID, current string) error
	Logout(ctx context.Context, accountID string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Issuer    Authenticator
	Refresher SessionRefresher
	Lifecycle AccountLifecycle
	Log       logging.Logger
	// SecureCookies marks the access cookie Secure (off for local dev).
	SecureCookies bool
}

func NewAuthHandler(i Authenticator, r SessionRefresher, l AccountLifecycle, log logging.Logger, secure bool) *AuthHandler {
	return &AuthHandler{Issuer: i, Refresher: r, Lifecycle: l, Log: log, SecureCookies: secure}
}

// ----- DTOs -----

type signupReq struct {
	LoginName   string `json:"login_name"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Bio         string `json:"bio"`
}
type loginReq struct {
	LoginName string `json:"login_name"`
	Password  string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Access  tokenPart  `json:"access"`
	Refresh *tokenPart `json:"refresh,omitempty"`
}

func toAuthResp(p auth.TokenPair) authResp {
	resp := authResp{Access: tokenPart{Token: p.AccessToken, Expires: p.AccessExpiresAt}}
	if p.RefreshToken != "" {
		resp.Refresh = &tokenPart{Token: p.RefreshToken, Expires: p.RefreshExpiresAt}
	}
	return resp
}

func (h *AuthHandler) setAccessCookie(c echo.Context, p auth.TokenPair) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    p.AccessToken,
		Path:     "/",
		Expires:  p.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// Signup: create the account.  No tokens are issued; the client logs in next.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acct, err := h.Lifecycle.Signup(ctx, auth.SignupInput{
		LoginName:   req.LoginName,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Bio:         req.Bio,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, acct)
}

// Login: verify and return a new pair.  Unknown login names and wrong
// passwords produce the same response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.LoginName = strings.TrimSpace(req.LoginName)
	if req.LoginName == "" || req.Password == "" {
		return badRequest(c, "login_name/password required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	pair, err := h.Issuer.Authenticate(ctx, req.LoginName, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			err = auth.ErrInvalidCredential
		}
		return writeError(c, h.Log, err)
	}
	h.setAccessCookie(c, pair)
	return c.JSON(http.StatusOK, toAuthResp(pair))
}

// Refresh: exchange the current refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	pair, err := h.Refresher.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.setAccessCookie(c, pair)
	return c.JSON(http.StatusOK, toAuthResp(pair))
}

// Logout: clear the stored refresh token of the current account.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, auth.ErrUnauthenticated)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Lifecycle.Logout(ctx, p.AccountID); err != nil {
		return writeError(c, h.Log, err)
	}
	c.SetCookie(&http.Cookie{Name: middleware.AccessCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	return c.NoContent(http.StatusNoContent)
}

// Me: the principal of the request.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, auth.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, p)
}
