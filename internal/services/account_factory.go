package services

import (
	"context"
	"errors"
	"strings"

	"github.com/profiles-api/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AccountWriter is the persistence handle the factory writes through.
type AccountWriter interface {
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
}

// AccountFactory builds validated accounts and persists them.
type AccountFactory struct {
	repo       AccountWriter
	bcryptCost int
}

type FactoryOption func(*AccountFactory)

// WithBcryptCost overrides the bcrypt work factor used for new credentials.
func WithBcryptCost(cost int) FactoryOption {
	return func(f *AccountFactory) {
		if cost > 0 {
			f.bcryptCost = cost
		}
	}
}

func NewAccountFactory(repo AccountWriter, opts ...FactoryOption) *AccountFactory {
	f := &AccountFactory{repo: repo, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateUser creates an active, unprivileged account. The email is required
// and stored normalized; an empty password leaves the account without a
// usable credential.
func (f *AccountFactory) CreateUser(ctx context.Context, email, name, password string) (types.Account, error) {
	if strings.TrimSpace(email) == "" {
		return types.Account{}, &ValidationError{Field: "email", Message: "users must have an email address"}
	}

	cred, err := f.credential("password", password)
	if err != nil {
		return types.Account{}, err
	}

	return f.repo.Create(ctx, types.Account{
		Email:      NormalizeEmail(email),
		Name:       name,
		Credential: cred,
		IsActive:   true,
	})
}

// CreateSuperuser creates an account through CreateUser and then marks it as
// superuser and staff.
func (f *AccountFactory) CreateSuperuser(ctx context.Context, email, name, password string) (types.Account, error) {
	account, err := f.CreateUser(ctx, email, name, password)
	if err != nil {
		return types.Account{}, err
	}

	account.IsSuperuser = true
	account.IsStaff = true
	return f.repo.Update(ctx, account)
}

// credential hashes password, reporting bcrypt's 72-byte input limit as a
// validation failure on field.
func (f *AccountFactory) credential(field, password string) (types.Credential, error) {
	cred, err := types.NewCredential(password, f.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return types.Credential{}, &ValidationError{Field: field, Message: "must be at most 72 bytes"}
	}
	return cred, err
}
