package ports

import (
	"context"

	"github.com/learningreport/account-service/internal/core/domain"
)

// CreateAccountInput carries the fields of a new account.
type CreateAccountInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateAccountInput carries a partial update. An empty field is not supplied.
type UpdateAccountInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountValidator runs the per-operation rule sets.
type AccountValidator interface {
	ValidateCreate(ctx context.Context, in CreateAccountInput) error
	ValidateUpdate(in UpdateAccountInput) error
	ValidateLogin(in LoginInput) error
}

// AccountService defines use-case operations for accounts and sessions.
type AccountService interface {
	ListAccounts(ctx context.Context) ([]domain.AccountView, error)
	GetAccount(ctx context.Context, id int64) (*domain.AccountView, error)
	CreateAccount(ctx context.Context, in CreateAccountInput) (*domain.AccountView, error)
	UpdateAccount(ctx context.Context, id int64, in UpdateAccountInput) error
	DeleteAccount(ctx context.Context, id int64) error
	Login(ctx context.Context, in LoginInput) (string, error)
	WhoAmI(claims domain.Claims) domain.Claims
}
