package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j0462/newspeed/internal/auth"
	"github.com/j0462/newspeed/internal/auth/authtest"
	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/model"
)

const (
	aliceID       = "0b7f5a44-6f8e-4c1a-9a57-2d1e4f0c9b11"
	alicePassword = "P@ssw0rd"
	testSecret    = "unit-test-secret"
)

type fixture struct {
	store     *authtest.Store
	events    *authtest.Publisher
	hasher    *auth.BcryptHasher
	codec     *auth.Codec
	issuer    *auth.Issuer
	validator *auth.Validator
	refresher *auth.Refresher
	lifecycle *auth.Lifecycle
}

type fixtureOpt func(*fixtureOpts)

type fixtureOpts struct {
	rotate bool
	now    func() time.Time
}

func withoutRotation() fixtureOpt { return func(o *fixtureOpts) { o.rotate = false } }

func withClock(now func() time.Time) fixtureOpt { return func(o *fixtureOpts) { o.now = now } }

// newFixture seeds the store with alice / P@ssw0rd.
func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	o := fixtureOpts{rotate: true}
	for _, opt := range opts {
		opt(&o)
	}

	hasher := auth.NewBcryptHasher(4)
	codec, err := auth.NewCodec(testSecret, o.now)
	require.NoError(t, err)

	hash, err := hasher.Hash(alicePassword)
	require.NoError(t, err)
	store := authtest.NewStore()
	store.Put(model.Account{
		ID:           aliceID,
		LoginName:    "alice",
		PasswordHash: hash,
		DisplayName:  "Alice",
		Email:        "alice@example.com",
	})

	policy := auth.Policy{AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, Rotate: o.rotate}
	log := logging.Discard()
	events := &authtest.Publisher{}
	return &fixture{
		store:     store,
		events:    events,
		hasher:    hasher,
		codec:     codec,
		issuer:    auth.NewIssuer(store, hasher, codec, policy, log),
		validator: auth.NewValidator(codec),
		refresher: auth.NewRefresher(store, codec, policy, log),
		lifecycle: auth.NewLifecycle(store, hasher, events, log),
	}
}

func (f *fixture) storedDigest(t *testing.T) string {
	t.Helper()
	a, ok := f.store.Get(aliceID)
	require.True(t, ok)
	return a.RefreshTokenHash
}
