package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/j0462/newspeed/internal/repository"
)

// errLostRace marks a conditional update that matched no row where a retry
// with fresh state may still succeed.
var errLostRace = errors.New("conditional update lost")

// retryOnce runs fn and, when it fails with a retryable error, runs it one
// more time.  A second retryable failure becomes ErrTransient.
func retryOnce(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !retryable(err) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if err = fn(ctx); err != nil && retryable(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// retryable is true for store I/O failures and lost races.  Domain outcomes
// (not found, bad credential, revoked, conflicts) are final.
func retryable(err error) bool {
	if errors.Is(err, errLostRace) {
		return true
	}
	for _, final := range []error{
		ErrMalformed, ErrBadSignature, ErrExpired, ErrRevoked, ErrNotFound,
		ErrInvalidCredential, ErrSamePassword, ErrUnauthenticated,
		ErrLoginNameTaken, ErrEmailTaken, ErrInvalidInput,
		context.Canceled,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}

// mapStoreErr converts repository sentinels into auth outcomes.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrLoginNameExists):
		return ErrLoginNameTaken
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	default:
		return err
	}
}
