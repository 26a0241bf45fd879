package model

import "time"

// Account represents a row of the `accounts` table.  It is the identity
// anchor for everything else in the feed (posts, comments and likes all
// reference Account.ID).
//
// Fields:
//
//	ID               – UUID primary key, immutable after creation.
//	LoginName        – unique name used to authenticate.
//	PasswordHash     – bcrypt hash; never logged or serialized.
//	DisplayName      – public display name.
//	Email            – unique contact address.
//	Bio              – free-form profile text.
//	RefreshTokenHash – SHA‑256 hex digest of the single live refresh token,
//	                   empty when no session may be refreshed.
//	WithdrawnAt      – set when the account was withdrawn (soft delete).
type Account struct {
	ID               string     `json:"id"`
	LoginName        string     `json:"login_name"`
	PasswordHash     string     `json:"-"`
	DisplayName      string     `json:"display_name"`
	Email            string     `json:"email"`
	Bio              string     `json:"bio"`
	RefreshTokenHash string     `json:"-"`
	WithdrawnAt      *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Profile is the public projection of an Account.
type Profile struct {
	ID          string `json:"id"`
	LoginName   string `json:"login_name"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func (a Account) Profile() Profile {
	return Profile{ID: a.ID, LoginName: a.LoginName, DisplayName: a.DisplayName, Bio: a.Bio}
}
