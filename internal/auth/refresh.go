package auth

import (
	"context"

	"github.com/j0462/newspeed/internal/logging"
)

// Refresher exchanges the current refresh token for new tokens.
type Refresher struct {
	store  Store
	codec  *Codec
	policy Policy
	log    logging.Logger
}

func NewRefresher(store Store, codec *Codec, policy Policy, log logging.Logger) *Refresher {
	return &Refresher{store: store, codec: codec, policy: policy, log: log}
}

// Refresh verifies token, checks it against the stored digest and mints a new
// access token.  With rotation on, a new refresh token replaces the old one
// through a compare-and-swap on the stored digest; of several concurrent
// calls presenting the same token at most one wins, the rest get ErrRevoked.
//
// Errors: ErrMalformed, ErrBadSignature, ErrExpired, ErrNotFound, ErrRevoked,
// ErrTransient.
func (r *Refresher) Refresh(ctx context.Context, token string) (TokenPair, error) {
	claims, err := r.codec.Verify(token, KindRefresh)
	if err != nil {
		r.log.Warn(ctx, "refresh token rejected", "reason", err.Error())
		return TokenPair{}, err
	}

	var pair TokenPair
	err = retryOnce(ctx, func(ctx context.Context) error {
		acct, err := r.store.FindByID(ctx, claims.Subject)
		if err != nil {
			return mapStoreErr(err)
		}
		if !refreshMatches(token, acct.RefreshTokenHash) {
			return ErrRevoked
		}

		p, err := mintPair(r.codec, acct.ID, r.policy, r.policy.Rotate)
		if err != nil {
			return err
		}
		if r.policy.Rotate {
			ok, err := r.store.CompareAndSwapRefreshToken(ctx, acct.ID, acct.RefreshTokenHash, HashRefreshToken(p.RefreshToken))
			if err != nil {
				return err
			}
			if !ok {
				return ErrRevoked
			}
		}
		pair = p
		return nil
	})
	if err != nil {
		r.log.Warn(ctx, "refresh failed", "account_id", claims.Subject, "reason", err.Error())
		return TokenPair{}, err
	}
	r.log.Debug(ctx, "session refreshed", "account_id", claims.Subject, "rotated", r.policy.Rotate)
	return pair, nil
}
