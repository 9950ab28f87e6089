package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/learningreport/account-service/internal/core/domain"
)

func TestAccountRepository_CreateAssignsSequentialIDs(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	for i, email := range []string{"a@b.com", "c@d.com"} {
		a := &domain.Account{Email: email, PasswordHash: "h", Role: domain.RoleUser}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
		if a.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, a.ID)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestAccountRepository_UniqueEmail(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	_ = repo.Create(ctx, &domain.Account{Email: "a@b.com"})
	if err := repo.Create(ctx, &domain.Account{Email: "a@b.com"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	other := &domain.Account{Email: "c@d.com"}
	_ = repo.Create(ctx, other)
	other.Email = "a@b.com"
	if err := repo.Update(ctx, other); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on update, got %v", err)
	}
}

func TestAccountRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Create(ctx, &domain.Account{Email: "race@b.com"}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one create to win, got %d", created)
	}
}

func TestAccountRepository_UpdateMovesEmailIndex(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	a := &domain.Account{Email: "old@b.com", Role: domain.RoleUser}
	_ = repo.Create(ctx, a)

	a.Email = "new@b.com"
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok, _ := repo.ExistsByEmail(ctx, "old@b.com"); ok {
		t.Fatalf("old email still indexed")
	}
	found, err := repo.FindByEmail(ctx, "new@b.com")
	if err != nil || found.ID != a.ID {
		t.Fatalf("expected account %d by new email, got %+v (%v)", a.ID, found, err)
	}
}

func TestAccountRepository_DeleteTwice(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	a := &domain.Account{Email: "a@b.com"}
	_ = repo.Create(ctx, a)

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.FindByID(ctx, a.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	a := &domain.Account{Email: "a@b.com", Role: domain.RoleUser}
	_ = repo.Create(ctx, a)

	found, _ := repo.FindByID(ctx, a.ID)
	found.Role = domain.RoleAdmin

	again, _ := repo.FindByID(ctx, a.ID)
	if again.Role != domain.RoleUser {
		t.Fatalf("stored account mutated through returned pointer")
	}
}
