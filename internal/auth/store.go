package auth

import (
	"context"

	"github.com/j0462/newspeed/internal/model"
	"github.com/j0462/newspeed/internal/queue"
)

// Store is the credential store.  Lookups never return withdrawn accounts.
// Every method that touches the refresh digest is a conditional update that
// reports whether it matched.
type Store interface {
	Create(ctx context.Context, a *model.Account) error
	FindByLoginName(ctx context.Context, loginName string) (model.Account, error)
	FindByID(ctx context.Context, id string) (model.Account, error)
	// CompareAndSwapRefreshToken sets the digest to next only if it equals
	// expected.  Empty means NULL on either side.
	CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	// StartSession is CompareAndSwapRefreshToken that also requires the
	// password hash to still equal passwordHash.
	StartSession(ctx context.Context, id, passwordHash, expected, next string) (bool, error)
	// UpdatePasswordHash swaps the password hash and clears the refresh digest.
	UpdatePasswordHash(ctx context.Context, id, expectedHash, newHash string) (bool, error)
	// MarkWithdrawn soft-deletes the account and clears the refresh digest.
	MarkWithdrawn(ctx context.Context, id string) (bool, error)
}

// EventPublisher receives security events after credential changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AccountEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.AccountEvent) error { return nil }
