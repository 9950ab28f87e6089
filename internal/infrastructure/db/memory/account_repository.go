// Package memory is a process-local account store for development and tests.
// It enforces the same invariants as the durable stores but cannot be shared
// between instances.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/learningreport/account-service/internal/core/domain"
)

type AccountRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*domain.Account
	byEmail map[string]int64
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[int64]*domain.Account),
		byEmail: make(map[string]int64),
	}
}

func (r *AccountRepository) List(_ context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]*domain.Account, 0, len(r.byID))
	for _, a := range r.byID {
		accounts = append(accounts, clone(a))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *AccountRepository) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return clone(a), nil
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *AccountRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return domain.ErrEmailTaken
	}

	r.nextID++
	now := time.Now().UTC()
	account.ID = r.nextID
	account.CreatedAt = now
	account.UpdatedAt = now

	r.byID[account.ID] = clone(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *AccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if owner, taken := r.byEmail[account.Email]; taken && owner != account.ID {
		return domain.ErrEmailTaken
	}

	delete(r.byEmail, current.Email)
	account.CreatedAt = current.CreatedAt
	account.UpdatedAt = time.Now().UTC()
	r.byID[account.ID] = clone(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *AccountRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, a.Email)
	return nil
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	return &c
}
