package store

import (
	"context"
	"testing"

	"github.com/profiles-api/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccountRepositoryUniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	first, err := repo.Create(ctx, types.Account{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)

	_, err = repo.Create(ctx, types.Account{Email: "ada@example.com", Name: "Other"})
	require.ErrorIs(t, err, ErrDuplicate)

	second, err := repo.Create(ctx, types.Account{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	second.Email = "ada@example.com"
	_, err = repo.Update(ctx, second)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryAccountRepositoryPermissions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	account, err := repo.Create(ctx, types.Account{Email: "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, repo.GrantPermission(ctx, account.ID, "accounts.view_account"))
	require.ErrorIs(t, repo.GrantPermission(ctx, 42, "accounts.view_account"), ErrNotFound)

	// Updates must not drop granted permissions.
	account.Name = "Ada"
	_, err = repo.Update(ctx, account)
	require.NoError(t, err)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, got.Permissions.Has("accounts.view_account"))

	// Returned values are copies.
	got.Permissions.Revoke("accounts.view_account")
	again, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, again.Permissions.Has("accounts.view_account"))

	require.NoError(t, repo.RevokePermission(ctx, account.ID, "accounts.view_account"))
	again, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, again.Permissions.Has("accounts.view_account"))
}

func TestMemoryAccountRepositoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := repo.Create(ctx, types.Account{Email: email})
		require.NoError(t, err)
	}

	page, total, err := repo.List(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b@example.com", page[0].Email)

	page, _, err = repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, repo.Delete(ctx, 2))
	require.ErrorIs(t, repo.Delete(ctx, 2), ErrNotFound)
	_, err = repo.GetByID(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
}
