package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const MinPasswordLength = 8

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Accounts is the persistence the account service needs.
type Accounts interface {
	Create(ctx context.Context, email, passwordHash, name string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

type Service struct {
	accounts Accounts
	logger   logging.Logger
	cost     []int
}

func NewService(accounts Accounts, logger logging.Logger) *Service {
	return &Service{accounts: accounts, logger: logger}
}

// Register validates the input, hashes the password and creates a
// free-plan account.
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	hash, err := auth.HashPassword(password, s.cost...)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.accounts.Create(ctx, email, hash, name)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", u.ID).Info("User registered")
	return u, nil
}

// Login returns the user when the password matches. Unknown emails and
// wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.accounts.GetByID(ctx, id)
}
