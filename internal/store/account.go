package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/profiles-api/apiserver/types"
)

const accountColumns = `id, email, name, password_hash, is_active, is_superuser, is_staff, last_login, created_at, updated_at`

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (types.Account, error) {
	var account types.Account
	if err := r.db.GetContext(ctx, &account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}

	perms, err := r.permissions(ctx, account.ID)
	if err != nil {
		return types.Account{}, err
	}
	account.Permissions = perms
	return account, nil
}

func (r *AccountRepository) List(ctx context.Context, offset, limit int) ([]types.Account, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM accounts`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, err
	}

	const listQuery = `SELECT ` + accountColumns + ` FROM accounts ORDER BY id OFFSET $1 LIMIT $2`
	accounts := make([]types.Account, 0, limit)
	if err := r.db.SelectContext(ctx, &accounts, listQuery, offset, limit); err != nil {
		return nil, 0, err
	}
	if err := r.attachPermissions(ctx, accounts); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *AccountRepository) attachPermissions(ctx context.Context, accounts []types.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	ids := make([]int, len(accounts))
	byID := make(map[int]*types.Account, len(accounts))
	for i := range accounts {
		ids[i] = accounts[i].ID
		accounts[i].Permissions = types.NewPermissions()
		byID[accounts[i].ID] = &accounts[i]
	}

	query, args, err := sqlx.In(`SELECT account_id, codename FROM account_permissions WHERE account_id IN (?)`, ids)
	if err != nil {
		return err
	}

	var grants []struct {
		AccountID int    `db:"account_id"`
		Codename  string `db:"codename"`
	}
	if err := r.db.SelectContext(ctx, &grants, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, g := range grants {
		if account, ok := byID[g.AccountID]; ok {
			account.Permissions.Grant(g.Codename)
		}
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	const query = `
		INSERT INTO accounts (email, name, password_hash, is_active, is_superuser, is_staff, last_login, created_at, updated_at)
		VALUES (:email, :name, :password_hash, :is_active, :is_superuser, :is_staff, :last_login, :created_at, :updated_at)
		RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, account)
	if err != nil {
		return types.Account{}, translate(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Account{}, translate(err)
		}
		return types.Account{}, sql.ErrNoRows
	}
	if err := rows.Scan(&account.ID); err != nil {
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) Update(ctx context.Context, account types.Account) (types.Account, error) {
	account.UpdatedAt = time.Now()

	const query = `
		UPDATE accounts
		SET email = :email,
			name = :name,
			password_hash = :password_hash,
			is_active = :is_active,
			is_superuser = :is_superuser,
			is_staff = :is_staff,
			last_login = :last_login,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		return types.Account{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Account{}, err
	}
	if affected == 0 {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GrantPermission(ctx context.Context, id int, codename string) error {
	const query = `
		INSERT INTO account_permissions (account_id, codename)
		SELECT id, $2 FROM accounts WHERE id = $1
		ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, id, codename); err != nil {
		return err
	}
	return r.exists(ctx, id)
}

func (r *AccountRepository) RevokePermission(ctx context.Context, id int, codename string) error {
	const query = `DELETE FROM account_permissions WHERE account_id = $1 AND codename = $2`
	if _, err := r.db.ExecContext(ctx, query, id, codename); err != nil {
		return err
	}
	return r.exists(ctx, id)
}

func (r *AccountRepository) exists(ctx context.Context, id int) error {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`
	var found bool
	if err := r.db.GetContext(ctx, &found, query, id); err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) permissions(ctx context.Context, id int) (types.Permissions, error) {
	const query = `SELECT codename FROM account_permissions WHERE account_id = $1 ORDER BY codename`
	var codenames []string
	if err := r.db.SelectContext(ctx, &codenames, query, id); err != nil {
		return nil, err
	}
	return types.NewPermissions(codenames...), nil
}
