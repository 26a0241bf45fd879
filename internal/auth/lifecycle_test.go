package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/queue"
)

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.lifecycle.ChangePassword(ctx, aliceID, alicePassword, "N3w-pass!"))

	_, err := f.issuer.Authenticate(ctx, "alice", alicePassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	_, err = f.issuer.Authenticate(ctx, "alice", "N3w-pass!")
	assert.NoError(t, err)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventPasswordChanged, events[0].Type)
	assert.Equal(t, aliceID, events[0].AccountID)
}

func TestChangePassword_SamePasswordWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.issuer.Authenticate(ctx, "alice", alicePassword)
	require.NoError(t, err)
	writes := f.store.Writes()
	digest := f.storedDigest(t)

	err = f.lifecycle.ChangePassword(ctx, aliceID, alicePassword, alicePassword)
	assert.ErrorIs(t, err, auth.ErrSamePassword)
	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, digest, f.storedDigest(t))
	assert.Empty(t, f.events.Events())
}

func TestChangePassword_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.lifecycle.ChangePassword(ctx, aliceID, "wrong-pass1!", "N3w-pass!")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	err = f.lifecycle.ChangePassword(ctx, "missing", alicePassword, "N3w-pass!")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	err = f.lifecycle.ChangePassword(ctx, aliceID, alicePassword, "short")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	f.store.FailNext(2)
	err = f.lifecycle.ChangePassword(ctx, aliceID, alicePassword, "N3w-pass!")
	assert.ErrorIs(t, err, auth.ErrTransient)

	assert.Zero(t, f.store.Writes())
}

func TestChangePassword_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("broker down")

	err := f.lifecycle.ChangePassword(context.Background(), aliceID, alicePassword, "N3w-pass!")
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.lifecycle.Withdraw(ctx, aliceID, "wrong-pass1!")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	require.NoError(t, f.lifecycle.Withdraw(ctx, aliceID, alicePassword))

	a, ok := f.store.Get(aliceID)
	require.True(t, ok)
	assert.NotNil(t, a.WithdrawnAt)
	assert.Empty(t, a.RefreshTokenHash)

	_, err = f.issuer.Authenticate(ctx, "alice", alicePassword)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	err = f.lifecycle.Withdraw(ctx, aliceID, alicePassword)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventWithdrawn, events[0].Type)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.issuer.Authenticate(ctx, "alice", alicePassword)
	require.NoError(t, err)

	require.NoError(t, f.lifecycle.Logout(ctx, aliceID))
	require.NoError(t, f.lifecycle.Logout(ctx, aliceID))
	assert.Empty(t, f.storedDigest(t))

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventLoggedOut, events[0].Type)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.lifecycle.Signup(ctx, auth.SignupInput{
		LoginName: "testUser123",
		Password:  "Test12345!",
		Email:     "test@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, "testUser123", acct.DisplayName)
	assert.NotEqual(t, "Test12345!", acct.PasswordHash)

	pair, err := f.issuer.Authenticate(ctx, "testUser123", "Test12345!")
	require.NoError(t, err)
	p, err := f.validator.Validate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, p.AccountID)
}

func TestSignup_Rejects(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		in   auth.SignupInput
		want error
	}{
		{"login name taken", auth.SignupInput{LoginName: "alice", Password: "Test12345!", Email: "new@example.com"}, auth.ErrLoginNameTaken},
		{"email taken", auth.SignupInput{LoginName: "bob_1", Password: "Test12345!", Email: "alice@example.com"}, auth.ErrEmailTaken},
		{"bad login name", auth.SignupInput{LoginName: "invalid@user", Password: "Test12345!", Email: "x@example.com"}, auth.ErrInvalidInput},
		{"weak password", auth.SignupInput{LoginName: "bob_1", Password: "password", Email: "x@example.com"}, auth.ErrInvalidInput},
		{"bad email", auth.SignupInput{LoginName: "bob_1", Password: "Test12345!", Email: "invalid-email"}, auth.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.lifecycle.Signup(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
