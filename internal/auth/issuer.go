package auth

import (
	"context"
	"errors"

	"github.com/j0462/newspeed/internal/logging"
)

// Issuer authenticates a login name and password and starts a session.
type Issuer struct {
	store     Store
	hasher    Hasher
	codec     *Codec
	policy    Policy
	log       logging.Logger
	dummyHash string
}

func NewIssuer(store Store, hasher Hasher, codec *Codec, policy Policy, log logging.Logger) *Issuer {
	// Unknown users are compared against this hash so both failure paths
	// spend the same bcrypt time.
	dummy, _ := hasher.Hash("newspeed-dummy-password")
	return &Issuer{store: store, hasher: hasher, codec: codec, policy: policy, log: log, dummyHash: dummy}
}

// Authenticate verifies the credentials and returns a fresh token pair.  The
// refresh digest replaces whatever was stored, so a new login ends the
// refresh capability of any earlier session on the account.
//
// Errors: ErrNotFound, ErrInvalidCredential, ErrTransient.
func (i *Issuer) Authenticate(ctx context.Context, loginName, password string) (TokenPair, error) {
	var pair TokenPair
	err := retryOnce(ctx, func(ctx context.Context) error {
		acct, err := i.store.FindByLoginName(ctx, loginName)
		if err != nil {
			err = mapStoreErr(err)
			if errors.Is(err, ErrNotFound) {
				i.hasher.Verify(password, i.dummyHash)
			}
			return err
		}
		if !i.hasher.Verify(password, acct.PasswordHash) {
			return ErrInvalidCredential
		}

		p, err := mintPair(i.codec, acct.ID, i.policy, true)
		if err != nil {
			return err
		}
		ok, err := i.store.StartSession(ctx, acct.ID, acct.PasswordHash, acct.RefreshTokenHash, HashRefreshToken(p.RefreshToken))
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent login, logout or password change moved the row;
			// re-read and verify against the current hash
			return errLostRace
		}
		pair = p
		i.log.Info(ctx, "login succeeded", "account_id", acct.ID)
		return nil
	})
	if err != nil {
		i.log.Warn(ctx, "login failed", "reason", err.Error())
		return TokenPair{}, err
	}
	return pair, nil
}
