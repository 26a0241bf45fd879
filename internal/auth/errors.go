package auth

import "errors"

// Token verification failures.  They stay distinct for logging; the
// transport collapses them into one opaque "authentication failed" reply.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

var (
	// ErrRevoked means a cryptographically valid refresh token no longer
	// matches the single live value stored for its account.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrNotFound means the account does not exist or was withdrawn.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredential means the password did not verify.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrSamePassword means the new password equals the current one.
	ErrSamePassword = errors.New("new password must differ from the current password")
	// ErrUnauthenticated means no usable access token accompanied the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTransient means the store kept failing after one retry.
	ErrTransient = errors.New("credential store temporarily unavailable")

	ErrLoginNameTaken = errors.New("login name already taken")
	ErrEmailTaken     = errors.New("email already taken")
	ErrInvalidInput   = errors.New("invalid input")
)

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrBadSignature) || errors.Is(err, ErrExpired)
}
