package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/j0462/newspeed/internal/model"
)

const accountColumns = "id,login_name,password_hash,display_name,email,bio,refresh_token_hash,created_at,updated_at"

// AccountRepo is the MySQL credential store.  Every mutation of
// refresh_token_hash is a conditional UPDATE whose WHERE clause carries the
// expected current value, so concurrent writers cannot both win.  The DSN
// must set clientFoundRows=true so RowsAffected reports matched rows.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create inserts the account, assigning a new UUID when ID is empty.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (id, login_name, password_hash, display_name, email, bio) VALUES (?,?,?,?,?,?)",
		a.ID, a.LoginName, a.PasswordHash, a.DisplayName, a.Email, a.Bio)
	if err != nil {
		return duplicateErr(err)
	}
	return nil
}

// FindByLoginName fetches a live account by login name.
func (r *AccountRepo) FindByLoginName(ctx context.Context, loginName string) (model.Account, error) {
	return r.findOne(ctx, "login_name", loginName)
}

// FindByID fetches a live account by id.
func (r *AccountRepo) FindByID(ctx context.Context, id string) (model.Account, error) {
	return r.findOne(ctx, "id", id)
}

func (r *AccountRepo) findOne(ctx context.Context, column, value string) (model.Account, error) {
	var (
		a       model.Account
		refresh sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+column+"=? AND withdrawn_at IS NULL LIMIT 1",
		value).Scan(&a.ID, &a.LoginName, &a.PasswordHash, &a.DisplayName, &a.Email, &a.Bio, &refresh, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("db error: %w", err)
	}
	a.RefreshTokenHash = refresh.String
	return a, nil
}

// CompareAndSwapRefreshToken replaces the stored refresh digest with next
// only if it currently equals expected.  Empty strings stand for NULL on
// both sides.  It reports whether the swap happened.
func (r *AccountRepo) CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=? WHERE id=? AND withdrawn_at IS NULL AND refresh_token_hash <=> ?",
		nullable(next), id, nullable(expected))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

// StartSession stores the refresh digest of a new login.  The swap only
// happens if the password hash is still the one the login verified, so a
// login racing a password change cannot leave a session behind.
func (r *AccountRepo) StartSession(ctx context.Context, id, passwordHash, expected, next string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=? WHERE id=? AND withdrawn_at IS NULL AND password_hash=? AND refresh_token_hash <=> ?",
		nullable(next), id, passwordHash, nullable(expected))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

// UpdatePasswordHash stores newHash if the current hash still equals
// expectedHash, clearing the refresh digest in the same statement.
func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, id, expectedHash, newHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET password_hash=?, refresh_token_hash=NULL WHERE id=? AND withdrawn_at IS NULL AND password_hash=?",
		newHash, id, expectedHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

// MarkWithdrawn soft-deletes the account and clears its refresh digest.
func (r *AccountRepo) MarkWithdrawn(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET withdrawn_at=UTC_TIMESTAMP(), refresh_token_hash=NULL WHERE id=? AND withdrawn_at IS NULL",
		id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

// UpdateProfile changes the public profile fields of a live account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id, displayName, email, bio string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET display_name=?, email=?, bio=? WHERE id=? AND withdrawn_at IS NULL",
		displayName, email, bio, id)
	if err != nil {
		return duplicateErr(err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// duplicateErr translates MySQL duplicate-key errors (1062) on the unique
// indexes into sentinel errors.
func duplicateErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		switch {
		case strings.Contains(me.Message, "uq_accounts_email"):
			return ErrEmailExists
		case strings.Contains(me.Message, "uq_accounts_login_name"):
			return ErrLoginNameExists
		}
	}
	return fmt.Errorf("db error: %w", err)
}
