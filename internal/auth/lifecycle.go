package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/model"
	"github.com/j0462/newspeed/internal/queue"
)

// Lifecycle owns account creation and every credential change that must end
// existing sessions.
type Lifecycle struct {
	store  Store
	hasher Hasher
	events EventPublisher
	log    logging.Logger
	now    func() time.Time
}

// NewLifecycle wires the manager.  A nil events publisher drops events.
func NewLifecycle(store Store, hasher Hasher, events EventPublisher, log logging.Logger) *Lifecycle {
	if events == nil {
		events = nopPublisher{}
	}
	return &Lifecycle{store: store, hasher: hasher, events: events, log: log, now: time.Now}
}

// SignupInput carries the fields of a new account.
type SignupInput struct {
	LoginName   string
	Password    string
	DisplayName string
	Email       string
	Bio         string
}

// Signup validates the input, hashes the password and creates the account.
//
// Errors: ErrInvalidInput, ErrLoginNameTaken, ErrEmailTaken, ErrTransient.
func (l *Lifecycle) Signup(ctx context.Context, in SignupInput) (model.Account, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validLoginName(in.LoginName); err != nil {
		return model.Account{}, err
	}
	if err := validPassword(in.Password); err != nil {
		return model.Account{}, err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return model.Account{}, err
	}
	if in.DisplayName == "" {
		in.DisplayName = in.LoginName
	}

	hash, err := l.hasher.Hash(in.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	acct := model.Account{
		LoginName:    in.LoginName,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		Bio:          in.Bio,
	}
	err = retryOnce(ctx, func(ctx context.Context) error {
		return mapStoreErr(l.store.Create(ctx, &acct))
	})
	if err != nil {
		return model.Account{}, err
	}
	l.log.Info(ctx, "account created", "account_id", acct.ID)
	return acct, nil
}

// ChangePassword replaces the password after verifying the current one and
// clears the stored refresh digest in the same write.  Access tokens already
// issued stay valid until they expire.
//
// Errors: ErrNotFound, ErrInvalidCredential, ErrSamePassword,
// ErrInvalidInput, ErrTransient.
func (l *Lifecycle) ChangePassword(ctx context.Context, accountID, current, next string) error {
	err := retryOnce(ctx, func(ctx context.Context) error {
		acct, err := l.store.FindByID(ctx, accountID)
		if err != nil {
			return mapStoreErr(err)
		}
		if !l.hasher.Verify(current, acct.PasswordHash) {
			return ErrInvalidCredential
		}
		if l.hasher.Verify(next, acct.PasswordHash) {
			return ErrSamePassword
		}
		if err := validPassword(next); err != nil {
			return err
		}
		hash, err := l.hasher.Hash(next)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ok, err := l.store.UpdatePasswordHash(ctx, accountID, acct.PasswordHash, hash)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		return nil
	})
	if err != nil {
		l.log.Warn(ctx, "password change failed", "account_id", accountID, "reason", err.Error())
		return err
	}
	l.publish(ctx, queue.EventPasswordChanged, accountID)
	return nil
}

// Withdraw verifies the password, then soft-deletes the account and clears
// its refresh digest in one write.
//
// Errors: ErrNotFound, ErrInvalidCredential, ErrTransient.
func (l *Lifecycle) Withdraw(ctx context.Context, accountID, current string) error {
	err := retryOnce(ctx, func(ctx context.Context) error {
		acct, err := l.store.FindByID(ctx, accountID)
		if err != nil {
			return mapStoreErr(err)
		}
		if !l.hasher.Verify(current, acct.PasswordHash) {
			return ErrInvalidCredential
		}
		ok, err := l.store.MarkWithdrawn(ctx, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		return nil
	})
	if err != nil {
		l.log.Warn(ctx, "withdraw failed", "account_id", accountID, "reason", err.Error())
		return err
	}
	l.publish(ctx, queue.EventWithdrawn, accountID)
	return nil
}

// Logout clears the stored refresh digest.  Logging out twice is not an
// error.
//
// Errors: ErrNotFound, ErrTransient.
func (l *Lifecycle) Logout(ctx context.Context, accountID string) error {
	cleared := false
	err := retryOnce(ctx, func(ctx context.Context) error {
		acct, err := l.store.FindByID(ctx, accountID)
		if err != nil {
			return mapStoreErr(err)
		}
		if acct.RefreshTokenHash == "" {
			return nil
		}
		ok, err := l.store.CompareAndSwapRefreshToken(ctx, accountID, acct.RefreshTokenHash, "")
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		cleared = true
		return nil
	})
	if err != nil {
		l.log.Warn(ctx, "logout failed", "account_id", accountID, "reason", err.Error())
		return err
	}
	if cleared {
		l.publish(ctx, queue.EventLoggedOut, accountID)
	}
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, typ queue.AccountEventType, accountID string) {
	ev := queue.AccountEvent{Type: typ, AccountID: accountID, OccurredAt: l.now().UTC()}
	if err := l.events.Publish(ctx, ev); err != nil {
		l.log.Error(ctx, "publish account event failed", "type", string(typ), "account_id", accountID, "error", err)
	}
}
