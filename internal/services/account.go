package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/profiles-api/apiserver/internal/store"
	"github.com/profiles-api/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	AccountWriter
	GetByID(ctx context.Context, id int) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	List(ctx context.Context, offset, limit int) ([]types.Account, int, error)
	Delete(ctx context.Context, id int) error
	GrantPermission(ctx context.Context, id int, codename string) error
	RevokePermission(ctx context.Context, id int, codename string) error
}

// AccountService encapsulates account use-cases.
type AccountService struct {
	repo      AccountRepository
	factory   *AccountFactory
	publisher Publisher
	logger    *zap.Logger

	// decoy is verified when the email is unknown so that lookups of
	// missing and existing accounts cost the same bcrypt work.
	decoy types.Credential
}

// NewAccountService wires the service. publisher may be nil, in which case
// no lifecycle events are sent.
func NewAccountService(repo AccountRepository, factory *AccountFactory, publisher Publisher, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoy, err := types.NewCredential(uuid.NewString(), factory.bcryptCost)
	if err != nil {
		logger.Warn("build decoy credential", zap.Error(err))
	}
	return &AccountService{
		repo:      repo,
		factory:   factory,
		publisher: publisher,
		logger:    logger,
		decoy:     decoy,
	}
}

func (s *AccountService) GetByID(ctx context.Context, id int) (types.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *AccountService) List(ctx context.Context, offset, limit int) ([]types.Account, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, offset, limit)
}

// Register creates a regular account.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (types.Account, error) {
	account, err := s.factory.CreateUser(ctx, email, name, password)
	if err != nil {
		return types.Account{}, err
	}
	s.logger.Info("account created", zap.Int("account_id", account.ID))
	s.publish(ctx, newAccountEvent(EventAccountCreated, account))
	return account, nil
}

// CreateSuperuser creates an account with superuser and staff flags set.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, name, password string) (types.Account, error) {
	account, err := s.factory.CreateSuperuser(ctx, email, name, password)
	if err != nil {
		return types.Account{}, err
	}
	s.logger.Info("superuser created", zap.Int("account_id", account.ID))
	s.publish(ctx, newAccountEvent(EventAccountCreated, account))
	return account, nil
}

// Authenticate checks the password of an active account and records the login.
// Unknown emails, inactive accounts, and wrong passwords all yield
// ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.Account, error) {
	account, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.decoy.Verify(password)
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, err
	}

	if !account.Credential.Verify(password) || !account.IsActive {
		return types.Account{}, ErrInvalidCredentials
	}

	now := time.Now()
	account.LastLogin = &now
	return s.repo.Update(ctx, account)
}

// ChangePassword replaces the credential after verifying the current password.
func (s *AccountService) ChangePassword(ctx context.Context, id int, current, next string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !account.Credential.Verify(current) {
		return ErrInvalidCredentials
	}
	if next == "" {
		return &ValidationError{Field: "new_password", Message: "must not be empty"}
	}

	cred, err := s.factory.credential("new_password", next)
	if err != nil {
		return err
	}
	account.Credential = cred
	if _, err := s.repo.Update(ctx, account); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return nil
}

func (s *AccountService) GrantPermission(ctx context.Context, id int, codename string) error {
	codename = strings.TrimSpace(codename)
	if codename == "" {
		return &ValidationError{Field: "permission", Message: "must not be empty"}
	}
	return s.repo.GrantPermission(ctx, id, codename)
}

func (s *AccountService) RevokePermission(ctx context.Context, id int, codename string) error {
	return s.repo.RevokePermission(ctx, id, strings.TrimSpace(codename))
}

// Deactivate disables login for the account without deleting it.
func (s *AccountService) Deactivate(ctx context.Context, id int) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Account{}, err
	}
	if !account.IsActive {
		return account, nil
	}

	account.IsActive = false
	account, err = s.repo.Update(ctx, account)
	if err != nil {
		return types.Account{}, err
	}
	s.publish(ctx, newAccountEvent(EventAccountDeactivated, account))
	return account, nil
}

func (s *AccountService) Delete(ctx context.Context, id int) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, newAccountEvent(EventAccountDeleted, account))
	return nil
}

func (s *AccountService) publish(ctx context.Context, event AccountEvent) {
	if s.publisher == nil {
		return
	}
	data, attrs, err := event.encode()
	if err != nil {
		s.logger.Error("encode account event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if _, err := s.publisher.Publish(ctx, AccountEventsChannel, data, attrs); err != nil {
		s.logger.Warn("publish account event",
			zap.String("type", event.Type),
			zap.Int("account_id", event.AccountID),
			zap.Error(err),
		)
	}
}
