package ports

import (
	"context"

	"github.com/learningreport/account-service/internal/core/domain"
)

// AccountRepository defines persistence operations for accounts.
// Implementations enforce email uniqueness and report a violation as
// domain.ErrEmailTaken.
type AccountRepository interface {
	// List returns all accounts ordered by id.
	List(ctx context.Context) ([]*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Create assigns the account id and timestamps.
	Create(ctx context.Context, account *domain.Account) error
	// Update overwrites email, password hash and role of the account with the same id.
	Update(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id int64) error
}

// CachedAccount is the outcome of a cache lookup. View is nil on a miss.
// Version is the invalidation generation of the id when the lookup ran.
type CachedAccount struct {
	View    *domain.AccountView
	Version int64
}

// AccountCache stores account views keyed by id.
//
// Set only stores view when the id has not been invalidated since the lookup
// that returned version; otherwise it drops the write and returns nil.
type AccountCache interface {
	Get(ctx context.Context, id int64) (CachedAccount, error)
	Set(ctx context.Context, view domain.AccountView, version int64) error
	Invalidate(ctx context.Context, id int64) error
}
