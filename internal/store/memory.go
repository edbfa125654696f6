package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/profiles-api/apiserver/types"
)

// MemoryAccountRepository keeps accounts in process memory. It honors the
// same contract as AccountRepository, including email uniqueness.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	nextID   int
	accounts map[int]types.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		nextID:   1,
		accounts: make(map[int]types.Account),
	}
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id int) (types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	return clone(account), nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.Email == email {
			return clone(account), nil
		}
	}
	return types.Account{}, ErrNotFound
}

func (r *MemoryAccountRepository) List(_ context.Context, offset, limit int) ([]types.Account, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	total := len(ids)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)

	out := make([]types.Account, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, clone(r.accounts[id]))
	}
	return out, total, nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(account.Email, 0) {
		return types.Account{}, ErrDuplicate
	}

	now := time.Now()
	account.ID = r.nextID
	account.CreatedAt = now
	account.UpdatedAt = now
	r.nextID++

	r.accounts[account.ID] = clone(account)
	return account, nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[account.ID]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	if r.emailTaken(account.Email, account.ID) {
		return types.Account{}, ErrDuplicate
	}

	// Permissions are managed through GrantPermission/RevokePermission only.
	account.Permissions = current.Permissions
	account.UpdatedAt = time.Now()
	r.accounts[account.ID] = clone(account)
	return clone(account), nil
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepository) GrantPermission(_ context.Context, id int, codename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if account.Permissions == nil {
		account.Permissions = types.NewPermissions()
	}
	account.Permissions.Grant(codename)
	r.accounts[id] = account
	return nil
}

func (r *MemoryAccountRepository) RevokePermission(_ context.Context, id int, codename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Permissions.Revoke(codename)
	return nil
}

func (r *MemoryAccountRepository) emailTaken(email string, exceptID int) bool {
	for id, account := range r.accounts {
		if id != exceptID && account.Email == email {
			return true
		}
	}
	return false
}

func clone(account types.Account) types.Account {
	account.Permissions = types.NewPermissions(account.Permissions.List()...)
	if account.LastLogin != nil {
		t := *account.LastLogin
		account.LastLogin = &t
	}
	return account
}
