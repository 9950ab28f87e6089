package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/learningreport/account-service/internal/api/metrics"
	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
	"github.com/learningreport/account-service/internal/core/validation"
)

// SessionTTL is the fixed validity window of a session token.
const SessionTTL = 60 * time.Minute

// AccountService implements account management and login.
type AccountService struct {
	repo      ports.AccountRepository
	validator ports.AccountValidator
	hasher    ports.PasswordHasher
	tokens    ports.TokenIssuer
	cache     ports.AccountCache
	logger    zerolog.Logger
}

var _ ports.AccountService = (*AccountService)(nil)

// NewAccountService wires the service. cache may be nil to disable caching.
func NewAccountService(
	repo ports.AccountRepository,
	validator ports.AccountValidator,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	cache ports.AccountCache,
	logger zerolog.Logger,
) *AccountService {
	if cache == nil {
		cache = noopCache{}
	}
	return &AccountService{
		repo:      repo,
		validator: validator,
		hasher:    hasher,
		tokens:    tokens,
		cache:     cache,
		logger:    logger,
	}
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.AccountView, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	views := make([]domain.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	return views, nil
}

// GetAccount reads through the cache. Cache failures degrade to a store read.
// The view read from the store is written back with the version seen before
// the read, so a concurrent update or delete is never overwritten.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.AccountView, error) {
	cached, cacheErr := s.cache.Get(ctx, id)
	switch {
	case cacheErr != nil:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(cacheErr).Int64("account_id", id).Msg("account cache read failed")
	case cached.View != nil:
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return cached.View, nil
	default:
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	view := account.View()
	if cacheErr == nil {
		if err := s.cache.Set(ctx, view, cached.Version); err != nil {
			s.logger.Warn().Err(err).Int64("account_id", id).Msg("account cache write failed")
		}
	}
	return &view, nil
}

// CreateAccount validates, hashes and persists a new account.
func (s *AccountService) CreateAccount(ctx context.Context, in ports.CreateAccountInput) (*domain.AccountView, error) {
	if err := s.validator.ValidateCreate(ctx, in); err != nil {
		return nil, s.rejected("create", err)
	}

	role, _ := domain.ParseRole(in.Role)
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	account := &domain.Account{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			// Lost a race with a concurrent create; the store's constraint decided.
			return nil, s.rejected("create", emailTaken())
		}
		s.logger.Error().Err(err).Msg("failed to create account")
		return nil, fmt.Errorf("create account: %w", err)
	}

	metrics.AccountsCreatedTotal.WithLabelValues(role.String()).Inc()
	s.logger.Info().Int64("account_id", account.ID).Str("role", role.String()).Msg("account created")

	view := account.View()
	return &view, nil
}

// UpdateAccount applies the supplied fields of in to account id. Validation
// runs before the existence check.
func (s *AccountService) UpdateAccount(ctx context.Context, id int64, in ports.UpdateAccountInput) error {
	if err := s.validator.ValidateUpdate(in); err != nil {
		return s.rejected("update", err)
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if in.Email != "" {
		account.Email = in.Email
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		account.PasswordHash = hash
	}
	if in.Role != "" {
		role, _ := domain.ParseRole(in.Role)
		account.Role = role
	}

	if err := s.repo.Update(ctx, account); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return s.rejected("update", emailTaken())
		}
		return fmt.Errorf("update account: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info().Int64("account_id", id).Msg("account updated")
	return nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info().Int64("account_id", id).Msg("account deleted")
	return nil
}

// Login checks credentials and mints a session token for the account.
func (s *AccountService) Login(ctx context.Context, in ports.LoginInput) (string, error) {
	if err := s.validator.ValidateLogin(in); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		}
		return "", s.rejected("login", err)
	}

	account, err := s.repo.FindByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		metrics.LoginAttemptsTotal.WithLabelValues("unknown_email").Inc()
		return "", &domain.InvalidCredentialsError{Field: "email"}
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		metrics.LoginAttemptsTotal.WithLabelValues("wrong_password").Inc()
		return "", &domain.InvalidCredentialsError{Field: "password"}
	}

	token, err := s.tokens.Issue(domain.Claims{Email: account.Email, Role: account.Role}, SessionTTL)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Int64("account_id", account.ID).Msg("login succeeded")
	return token, nil
}

// WhoAmI echoes claims that the token middleware already verified.
func (s *AccountService) WhoAmI(claims domain.Claims) domain.Claims {
	return claims
}

// rejected counts validation failures and passes every error through unchanged.
func (s *AccountService) rejected(operation string, err error) error {
	if errors.Is(err, domain.ErrValidation) {
		metrics.ValidationFailuresTotal.WithLabelValues(operation).Inc()
		return err
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func (s *AccountService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn().Err(err).Int64("account_id", id).Msg("account cache invalidation failed")
	}
}

func emailTaken() error {
	return &domain.ValidationError{Failures: []domain.FieldError{validation.EmailTaken()}}
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (ports.CachedAccount, error) { return ports.CachedAccount{}, nil }
func (noopCache) Set(context.Context, domain.AccountView, int64) error    { return nil }
func (noopCache) Invalidate(context.Context, int64) error                 { return nil }
