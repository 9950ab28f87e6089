package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
	"github.com/learningreport/account-service/internal/core/validation"
	"github.com/learningreport/account-service/internal/infrastructure/auth"
	"github.com/learningreport/account-service/internal/infrastructure/db/memory"
	rediscache "github.com/learningreport/account-service/internal/infrastructure/db/redis"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const testSecret = "service-test-secret"

type fixture struct {
	svc    *AccountService
	repo   ports.AccountRepository
	hasher *auth.BcryptHasher
	tokens *auth.JWTIssuer
}

func newFixture(t *testing.T, repo ports.AccountRepository, cache ports.AccountCache) *fixture {
	t.Helper()
	if repo == nil {
		repo = memory.NewAccountRepository()
	}
	tokens, err := auth.NewJWTIssuer(testSecret)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	svc := NewAccountService(repo, validation.NewAccountValidator(repo), hasher, tokens, cache, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, hasher: hasher, tokens: tokens}
}

func (f *fixture) create(t *testing.T, email, password, role string) *domain.AccountView {
	t.Helper()
	view, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: email, Password: password, Role: role,
	})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return view
}

func validationFailures(t *testing.T, err error) []domain.FieldError {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *domain.ValidationError, got %v", err)
	}
	return ve.Failures
}

// failingRepo wraps a real store and lets a test inject errors per method.
type failingRepo struct {
	ports.AccountRepository
	existsErr error
	createErr error
	findErr   error
}

func (r *failingRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return r.AccountRepository.ExistsByEmail(ctx, email)
}

func (r *failingRepo) Create(ctx context.Context, a *domain.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.AccountRepository.Create(ctx, a)
}

func (r *failingRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.AccountRepository.FindByEmail(ctx, email)
}

type stubCache struct {
	entries     map[int64]domain.AccountView
	versions    map[int64]int64
	invalidated []int64
	sets        int
	getErr      error
}

func newStubCache() *stubCache {
	return &stubCache{
		entries:  make(map[int64]domain.AccountView),
		versions: make(map[int64]int64),
	}
}

func (c *stubCache) Get(_ context.Context, id int64) (ports.CachedAccount, error) {
	if c.getErr != nil {
		return ports.CachedAccount{}, c.getErr
	}
	out := ports.CachedAccount{Version: c.versions[id]}
	if v, ok := c.entries[id]; ok {
		out.View = &v
	}
	return out, nil
}

func (c *stubCache) Set(_ context.Context, v domain.AccountView, version int64) error {
	c.sets++
	if c.versions[v.ID] != version {
		return nil
	}
	c.entries[v.ID] = v
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, id int64) error {
	delete(c.entries, id)
	c.versions[id]++
	c.invalidated = append(c.invalidated, id)
	return nil
}

// hookRepo runs afterFind once, right after the next FindByID returns.
type hookRepo struct {
	ports.AccountRepository
	afterFind func()
}

func (r *hookRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := r.AccountRepository.FindByID(ctx, id)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return a, err
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestAccountService_Create_Success(t *testing.T) {
	f := newFixture(t, nil, nil)

	view := f.create(t, "a@b.com", "secret", "User")
	if view.ID != 1 || view.Email != "a@b.com" || view.Role != domain.RoleUser {
		t.Fatalf("unexpected view: %+v", view)
	}

	stored, err := f.repo.FindByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.PasswordHash == "secret" {
		t.Fatalf("expected password to be hashed")
	}
	if !f.hasher.Verify("secret", stored.PasswordHash) {
		t.Fatalf("stored hash does not match password")
	}
}

func TestAccountService_Create_DuplicateEmail(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.create(t, "a@b.com", "secret", "User")

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "a@b.com", Password: "other1", Role: "Admin",
	})
	failures := validationFailures(t, err)
	if len(failures) != 1 || failures[0] != validation.EmailTaken() {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	all, _ := f.repo.List(context.Background())
	if len(all) != 1 || all[0].Role != domain.RoleUser {
		t.Fatalf("storage mutated by rejected create: %+v", all)
	}
}

func TestAccountService_MultibytePasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t, nil, nil)
	long := strings.Repeat("é", 40) // 80 bytes

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "a@b.com", Password: long, Role: "User",
	})
	failures := validationFailures(t, err)
	if len(failures) != 1 || failures[0].Field != "password" {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	view := f.create(t, "b@b.com", strings.Repeat("é", 36), "User")
	err = f.svc.UpdateAccount(context.Background(), view.ID, ports.UpdateAccountInput{Password: long})
	failures = validationFailures(t, err)
	if failures[0].Field != "password" {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestAccountService_Create_ValidationBeforeMutation(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "nope", Password: "abc", Role: "Guest",
	})
	if failures := validationFailures(t, err); len(failures) != 3 {
		t.Fatalf("expected 3 failures, got %+v", failures)
	}

	all, _ := f.repo.List(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected no accounts, got %d", len(all))
	}
}

func TestAccountService_Create_StoreRaceReportedAsValidation(t *testing.T) {
	repo := &failingRepo{AccountRepository: memory.NewAccountRepository(), createErr: domain.ErrEmailTaken}
	f := newFixture(t, repo, nil)

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "a@b.com", Password: "secret", Role: "User",
	})
	failures := validationFailures(t, err)
	if failures[0] != validation.EmailTaken() {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestAccountService_Create_StoreFailureIsInternal(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &failingRepo{AccountRepository: memory.NewAccountRepository(), createErr: boom}
	f := newFixture(t, repo, nil)

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "a@b.com", Password: "secret", Role: "User",
	})
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestAccountService_Create_ExistenceCheckFailure(t *testing.T) {
	boom := errors.New("timeout")
	repo := &failingRepo{AccountRepository: memory.NewAccountRepository(), existsErr: boom}
	f := newFixture(t, repo, nil)

	_, err := f.svc.CreateAccount(context.Background(), ports.CreateAccountInput{
		Email: "a@b.com", Password: "secret", Role: "User",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Read
// ---------------------------------------------------------------------------

func TestAccountService_ListAndGet(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.create(t, "a@b.com", "secret", "User")
	f.create(t, "c@d.com", "secret", "Admin")

	views, err := f.svc.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 || views[0].ID != 1 || views[1].Role != domain.RoleAdmin {
		t.Fatalf("unexpected views: %+v", views)
	}

	view, err := f.svc.GetAccount(context.Background(), 2)
	if err != nil || view.Email != "c@d.com" {
		t.Fatalf("unexpected get: %+v (%v)", view, err)
	}

	if _, err := f.svc.GetAccount(context.Background(), 42); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountService_Get_UsesCache(t *testing.T) {
	cache := newStubCache()
	f := newFixture(t, nil, cache)
	view := f.create(t, "a@b.com", "secret", "User")

	if _, err := f.svc.GetAccount(context.Background(), view.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := cache.entries[view.ID]; !ok {
		t.Fatalf("expected view to be cached")
	}

	cache.entries[view.ID] = domain.AccountView{ID: view.ID, Email: "cached@b.com", Role: domain.RoleUser}
	got, err := f.svc.GetAccount(context.Background(), view.ID)
	if err != nil || got.Email != "cached@b.com" {
		t.Fatalf("expected cached view, got %+v (%v)", got, err)
	}
}

func TestAccountService_Get_CacheErrorFallsBack(t *testing.T) {
	cache := newStubCache()
	cache.getErr = errors.New("redis down")
	f := newFixture(t, nil, cache)
	view := f.create(t, "a@b.com", "secret", "User")

	got, err := f.svc.GetAccount(context.Background(), view.ID)
	if err != nil || got.Email != "a@b.com" {
		t.Fatalf("expected store read, got %+v (%v)", got, err)
	}
	if cache.sets != 0 {
		t.Fatalf("expected no write-back without a version, got %d", cache.sets)
	}
}

func TestAccountService_Get_DeleteDuringReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &hookRepo{AccountRepository: memory.NewAccountRepository()}
	cache := newStubCache()
	f := newFixture(t, repo, cache)
	view := f.create(t, "a@b.com", "secret", "User")

	repo.afterFind = func() {
		if err := f.svc.DeleteAccount(ctx, view.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if _, err := f.svc.GetAccount(ctx, view.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	if _, err := f.svc.GetAccount(ctx, view.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after delete, got %v", err)
	}
}

func TestAccountService_Get_DeleteDuringReadWithRedisCache(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client, err := rediscache.Connect(ctx, rediscache.Config{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	repo := &hookRepo{AccountRepository: memory.NewAccountRepository()}
	f := newFixture(t, repo, rediscache.NewAccountCache(client, 0))
	view := f.create(t, "a@b.com", "secret", "User")

	repo.afterFind = func() {
		if err := f.svc.DeleteAccount(ctx, view.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if _, err := f.svc.GetAccount(ctx, view.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	if _, err := f.svc.GetAccount(ctx, view.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after delete, got %v", err)
	}
}

func TestAccountService_Get_UpdateDuringReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &hookRepo{AccountRepository: memory.NewAccountRepository()}
	cache := newStubCache()
	f := newFixture(t, repo, cache)
	view := f.create(t, "a@b.com", "secret", "User")

	repo.afterFind = func() {
		if err := f.svc.UpdateAccount(ctx, view.ID, ports.UpdateAccountInput{Role: "Admin"}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if _, err := f.svc.GetAccount(ctx, view.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	got, err := f.svc.GetAccount(ctx, view.ID)
	if err != nil || got.Role != domain.RoleAdmin {
		t.Fatalf("expected updated role, got %+v (%v)", got, err)
	}
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

func TestAccountService_Update_PasswordOnly(t *testing.T) {
	cache := newStubCache()
	f := newFixture(t, nil, cache)
	view := f.create(t, "a@b.com", "secret", "User")
	before, _ := f.repo.FindByID(context.Background(), view.ID)

	if err := f.svc.UpdateAccount(context.Background(), view.ID, ports.UpdateAccountInput{Password: "newpw1"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	after, _ := f.repo.FindByID(context.Background(), view.ID)
	if after.PasswordHash == before.PasswordHash {
		t.Fatalf("expected password hash to change")
	}
	if !f.hasher.Verify("newpw1", after.PasswordHash) {
		t.Fatalf("new password does not verify")
	}
	if after.Email != "a@b.com" || after.Role != domain.RoleUser {
		t.Fatalf("unsupplied fields changed: %+v", after)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != view.ID {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}
}

func TestAccountService_Update_EmptyChangesNothing(t *testing.T) {
	f := newFixture(t, nil, nil)
	view := f.create(t, "a@b.com", "secret", "Admin")
	before, _ := f.repo.FindByID(context.Background(), view.ID)

	if err := f.svc.UpdateAccount(context.Background(), view.ID, ports.UpdateAccountInput{}); err != nil {
		t.Fatalf("update: %v", err)
	}

	after, _ := f.repo.FindByID(context.Background(), view.ID)
	if after.Email != before.Email || after.Role != before.Role || after.PasswordHash != before.PasswordHash {
		t.Fatalf("empty update changed the account: %+v -> %+v", before, after)
	}
}

func TestAccountService_Update_EmailAndRole(t *testing.T) {
	f := newFixture(t, nil, nil)
	view := f.create(t, "a@b.com", "secret", "User")

	err := f.svc.UpdateAccount(context.Background(), view.ID, ports.UpdateAccountInput{Email: "z@b.com", Role: "Admin"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := f.svc.GetAccount(context.Background(), view.ID)
	if got.Email != "z@b.com" || got.Role != domain.RoleAdmin {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestAccountService_Update_NotFound(t *testing.T) {
	f := newFixture(t, nil, nil)

	err := f.svc.UpdateAccount(context.Background(), 99, ports.UpdateAccountInput{Role: "Admin"})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	err = f.svc.UpdateAccount(context.Background(), 99, ports.UpdateAccountInput{Role: "Owner"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation to run first, got %v", err)
	}
}

func TestAccountService_Update_EmailCollision(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.create(t, "a@b.com", "secret", "User")
	second := f.create(t, "c@d.com", "secret", "User")

	err := f.svc.UpdateAccount(context.Background(), second.ID, ports.UpdateAccountInput{Email: "a@b.com"})
	failures := validationFailures(t, err)
	if failures[0] != validation.EmailTaken() {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestAccountService_Delete(t *testing.T) {
	cache := newStubCache()
	f := newFixture(t, nil, cache)
	view := f.create(t, "a@b.com", "secret", "User")

	if err := f.svc.DeleteAccount(context.Background(), view.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteAccount(context.Background(), view.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on second delete, got %v", err)
	}
	if err := f.svc.DeleteAccount(context.Background(), 1234); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected one invalidation, got %v", cache.invalidated)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAccountService_Login_UnknownEmail(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "nouser@x.com", Password: "whatever"})
	var ice *domain.InvalidCredentialsError
	if !errors.As(err, &ice) || ice.Field != "email" {
		t.Fatalf("expected email InvalidCredentialsError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials in chain")
	}
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.create(t, "a@b.com", "secret", "User")

	_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "wrongpass"})
	var ice *domain.InvalidCredentialsError
	if !errors.As(err, &ice) || ice.Field != "password" {
		t.Fatalf("expected password InvalidCredentialsError, got %v", err)
	}
}

func TestAccountService_Login_Validation(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "bad", Password: "123"})
	if failures := validationFailures(t, err); len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failures)
	}
}

func TestAccountService_Login_StoreFailure(t *testing.T) {
	boom := errors.New("store offline")
	repo := &failingRepo{AccountRepository: memory.NewAccountRepository(), findErr: boom}
	f := newFixture(t, repo, nil)

	_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "secret"})
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected internal store error, got %v", err)
	}
}

func TestAccountService_EndToEnd(t *testing.T) {
	f := newFixture(t, nil, nil)

	view := f.create(t, "a@b.com", "secret", "User")
	if view.ID != 1 {
		t.Fatalf("expected id 1, got %d", view.ID)
	}

	token, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := f.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := domain.Claims{Email: "a@b.com", Role: domain.RoleUser}
	if claims != want {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := f.svc.WhoAmI(claims); got != want {
		t.Fatalf("unexpected identity: %+v", got)
	}
}
