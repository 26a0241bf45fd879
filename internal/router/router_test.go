package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/auth/authtest"
	"github.com/j0462/newspeed/internal/handler"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/queue"
	"github.com/j0462/newspeed/internal/router"
)

type app struct {
	e      *echo.Echo
	store  *authtest.Store
	events *authtest.Publisher
}

func newApp(t *testing.T) *app {
	t.Helper()
	log := logging.Discard()
	hasher := auth.NewBcryptHasher(4)
	codec, err := auth.NewCodec("router-secret", nil)
	require.NoError(t, err)
	policy := auth.Policy{AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, Rotate: true}
	store := authtest.NewStore()
	events := &authtest.Publisher{}

	issuer := auth.NewIssuer(store, hasher, codec, policy, log)
	refresher := auth.NewRefresher(store, codec, policy, log)
	lifecycle := auth.NewLifecycle(store, hasher, events, log)
	validator := auth.NewValidator(codec)
	passthrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	e := echo.New()
	router.RegisterRoutes(e, nil)
	router.RegisterAuth(e, handler.NewAuthHandler(issuer, refresher, lifecycle, log, false), validator, log, passthrough)
	router.RegisterProfile(e, handler.NewProfileHandler(store, lifecycle, log, nil), validator, log, passthrough)
	return &app{e: e, store: store, events: events}
}

func (a *app) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type tokens struct {
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh *struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signupAndLogin creates alice and returns her id and tokens.
func (a *app) signupAndLogin(t *testing.T) (string, tokens) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/signup", echo.Map{
		"login_name": "alice",
		"password":   "P@ssw0rd",
		"email":      "alice@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acct := decode[map[string]any](t, rec)
	assert.NotContains(t, acct, "password_hash")
	assert.NotContains(t, acct, "PasswordHash")

	rec = a.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"login_name": "alice", "password": "P@ssw0rd"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tk := decode[tokens](t, rec)
	require.NotEmpty(t, tk.Access.Token)
	require.NotNil(t, tk.Refresh)
	return acct["id"].(string), tk
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	a := newApp(t)
	id, tk := a.signupAndLogin(t)

	rec := a.do(t, http.MethodGet, "/v1/me", nil, tk.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[auth.Principal](t, rec)
	assert.Equal(t, id, p.AccountID)

	rec = a.do(t, http.MethodGet, "/v1/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	a := newApp(t)
	a.signupAndLogin(t)

	wrong := a.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"login_name": "alice", "password": "Wrong-pass1"}, "")
	unknown := a.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"login_name": "nobody", "password": "Wrong-pass1"}, "")
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())

	missing := a.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"login_name": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestSignupConflictAndValidation(t *testing.T) {
	a := newApp(t)
	a.signupAndLogin(t)

	rec := a.do(t, http.MethodPost, "/v1/auth/signup", echo.Map{
		"login_name": "alice", "password": "P@ssw0rd", "email": "other@example.com",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/signup", echo.Map{
		"login_name": "bob_1", "password": "password", "email": "bob@example.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotation(t *testing.T) {
	a := newApp(t)
	_, tk := a.signupAndLogin(t)

	rec := a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": tk.Refresh.Token}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[tokens](t, rec)
	require.NotNil(t, next.Refresh)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": tk.Refresh.Token}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication failed"}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": "garbage"}, "")
	assert.JSONEq(t, `{"error":"authentication failed"}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePasswordEndsRefresh(t *testing.T) {
	a := newApp(t)
	_, tk := a.signupAndLogin(t)

	rec := a.do(t, http.MethodPut, "/v1/profile/password", echo.Map{
		"current_password": "P@ssw0rd", "new_password": "P@ssw0rd",
	}, tk.Access.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/v1/profile/password", echo.Map{
		"current_password": "Wrong-pass1", "new_password": "N3w-pass!",
	}, tk.Access.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/v1/profile/password", echo.Map{
		"current_password": "P@ssw0rd", "new_password": "N3w-pass!",
	}, tk.Access.Token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": tk.Refresh.Token}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the access token remains valid until it expires
	rec = a.do(t, http.MethodGet, "/v1/me", nil, tk.Access.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	events := a.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventPasswordChanged, events[0].Type)
}

func TestLogout(t *testing.T) {
	a := newApp(t)
	_, tk := a.signupAndLogin(t)

	rec := a.do(t, http.MethodPost, "/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/logout", nil, tk.Access.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": tk.Refresh.Token}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileAndWithdraw(t *testing.T) {
	a := newApp(t)
	id, tk := a.signupAndLogin(t)

	rec := a.do(t, http.MethodGet, "/v1/profiles/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", profile["login_name"])
	assert.NotContains(t, profile, "email")

	rec = a.do(t, http.MethodPut, "/v1/profile", echo.Map{
		"display_name": "Alice A.", "email": "not-an-email", "bio": "",
	}, tk.Access.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/v1/profile", echo.Map{
		"display_name": "Alice A.", "email": "alice@example.org", "bio": "hello",
	}, tk.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.Equal(t, "Alice A.", updated["display_name"])

	rec = a.do(t, http.MethodDelete, "/v1/profile", echo.Map{"password": "Wrong-pass1"}, tk.Access.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/v1/profile", echo.Map{"password": "P@ssw0rd"}, tk.Access.Token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/profiles/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": tk.Refresh.Token}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
