// Package repository defines error types that are reused across the
// repositories.  These sentinel values allow higher layers such as the auth
// services and handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrNotFound is returned when no live (non-withdrawn) row matches.
var ErrNotFound = errors.New("not found")

// ErrLoginNameExists is returned by Create when the login name is taken.
var ErrLoginNameExists = errors.New("login name already exists")

// ErrEmailExists is returned by Create when the email is taken.
var ErrEmailExists = errors.New("email already exists")
