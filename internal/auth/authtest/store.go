// Package authtest provides in-memory fakes of the credential store and the
// event publisher for tests.
package authtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j0462/newspeed/internal/model"
	"github.com/j0462/newspeed/internal/queue"
	"github.com/j0462/newspeed/internal/repository"
)

// ErrInjected is returned by Store calls while failures are queued.
var ErrInjected = errors.New("authtest: injected store failure")

// Store is an in-memory credential store with the same conditional-update
// semantics as the MySQL repository.  It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	writes   int
	failures int
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*model.Account)}
}

// FailNext makes the next n calls return ErrInjected.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

// Writes counts successful mutations.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Get returns a copy of the row including withdrawn accounts.
func (s *Store) Get(id string) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, false
	}
	return *a, true
}

// Put stores a copy of a, bypassing uniqueness checks and the write counter.
func (s *Store) Put(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.accounts[a.ID] = &cp
}

func (s *Store) injected() bool {
	if s.failures > 0 {
		s.failures--
		return true
	}
	return false
}

func (s *Store) live(id string) (*model.Account, bool) {
	a, ok := s.accounts[id]
	if !ok || a.WithdrawnAt != nil {
		return nil, false
	}
	return a, true
}

func (s *Store) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return ErrInjected
	}
	for _, other := range s.accounts {
		if other.LoginName == a.LoginName {
			return repository.ErrLoginNameExists
		}
		if other.Email == a.Email {
			return repository.ErrEmailExists
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.accounts[a.ID] = &cp
	s.writes++
	return nil
}

func (s *Store) FindByLoginName(_ context.Context, loginName string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return model.Account{}, ErrInjected
	}
	for _, a := range s.accounts {
		if a.LoginName == loginName && a.WithdrawnAt == nil {
			return *a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return model.Account{}, ErrInjected
	}
	a, ok := s.live(id)
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return *a, nil
}

func (s *Store) CompareAndSwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return false, ErrInjected
	}
	a, ok := s.live(id)
	if !ok || a.RefreshTokenHash != expected {
		return false, nil
	}
	a.RefreshTokenHash = next
	s.writes++
	return true, nil
}

func (s *Store) StartSession(_ context.Context, id, passwordHash, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return false, ErrInjected
	}
	a, ok := s.live(id)
	if !ok || a.PasswordHash != passwordHash || a.RefreshTokenHash != expected {
		return false, nil
	}
	a.RefreshTokenHash = next
	s.writes++
	return true, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, expectedHash, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return false, ErrInjected
	}
	a, ok := s.live(id)
	if !ok || a.PasswordHash != expectedHash {
		return false, nil
	}
	a.PasswordHash = newHash
	a.RefreshTokenHash = ""
	s.writes++
	return true, nil
}

func (s *Store) MarkWithdrawn(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return false, ErrInjected
	}
	a, ok := s.live(id)
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	a.WithdrawnAt = &now
	a.RefreshTokenHash = ""
	s.writes++
	return true, nil
}

// UpdateProfile edits the public fields of a live account.
func (s *Store) UpdateProfile(_ context.Context, id, displayName, email, bio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injected() {
		return ErrInjected
	}
	a, ok := s.live(id)
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range s.accounts {
		if other.ID != id && other.Email == email {
			return repository.ErrEmailExists
		}
	}
	a.DisplayName, a.Email, a.Bio = displayName, email, bio
	a.UpdatedAt = time.Now().UTC()
	s.writes++
	return nil
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []queue.AccountEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, ev queue.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []queue.AccountEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.AccountEvent(nil), p.events...)
}
