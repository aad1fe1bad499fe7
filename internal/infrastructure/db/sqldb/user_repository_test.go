package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99minutos/account-service/internal/core/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Dialect:      SQLite,
		DSN:          SQLiteDSN(filepath.Join(t.TempDir(), "users.db")),
		MaxOpenConns: 4,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepo(t *testing.T) (*UserRepository, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	repo := NewUserRepository(db)
	repo.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return repo, db
}

func createUser(t *testing.T, repo *UserRepository, name string, systems []string) string {
	t.Helper()
	id, err := repo.Create(context.Background(), &domain.User{
		Name:             name,
		PasswordHash:     "$2a$10$hash",
		Role:             "admin",
		PermittedSystems: systems,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return id
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id := createUser(t, repo, "alice", []string{"billing", "crm"})
	if id != "1" {
		t.Fatalf("expected first id 1, got %q", id)
	}

	byID, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	byName, err := repo.FindByName(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if !reflect.DeepEqual(byID, byName) {
		t.Fatalf("lookups disagree: %+v vs %+v", byID, byName)
	}
	if byID.PasswordHash != "$2a$10$hash" || byID.Role != "admin" {
		t.Fatalf("unexpected row: %+v", byID)
	}
	if !reflect.DeepEqual(byID.PermittedSystems, []string{"billing", "crm"}) {
		t.Fatalf("unexpected permitted systems: %v", byID.PermittedSystems)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !byID.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %v, want %v", byID.CreatedAt, want)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"42", "abc", "", "-1"} {
		if _, err := repo.FindByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("FindByID(%q): expected ErrNotFound, got %v", id, err)
		}
	}
	if _, err := repo.FindByName(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_UniqueName(t *testing.T) {
	repo, _ := newTestRepo(t)

	createUser(t, repo, "alice", nil)
	_, err := repo.Create(context.Background(), &domain.User{Name: "alice", PasswordHash: "x"})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Names compare case-sensitively.
	createUser(t, repo, "Alice", nil)
}

func TestUserRepository_ConcurrentCreateSameName(t *testing.T) {
	repo, _ := newTestRepo(t)

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), &domain.User{Name: "race", PasswordHash: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateName):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", ok)
	}
}

func TestUserRepository_List(t *testing.T) {
	repo, _ := newTestRepo(t)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty, non-nil list, got %#v", users)
	}

	createUser(t, repo, "alice", []string{"billing"})
	createUser(t, repo, "bob", nil)

	users, err = repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].Name != "alice" || users[1].Name != "bob" {
		t.Fatalf("unexpected list: %+v", users)
	}
	if users[1].PermittedSystems == nil || len(users[1].PermittedSystems) != 0 {
		t.Fatalf("expected empty set for bob, got %#v", users[1].PermittedSystems)
	}
}

func TestUserRepository_UpdatePartial(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	id := createUser(t, repo, "alice", []string{"billing"})

	role := "auditor"
	systems := []string{"crm", "erp"}
	if err := repo.Update(ctx, id, domain.UserChanges{Role: &role, PermittedSystems: &systems}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	u, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if u.Name != "alice" || u.PasswordHash != "$2a$10$hash" {
		t.Fatalf("untouched columns changed: %+v", u)
	}
	if u.Role != "auditor" || !reflect.DeepEqual(u.PermittedSystems, systems) {
		t.Fatalf("update not applied: %+v", u)
	}
}

func TestUserRepository_UpdateRenameCollision(t *testing.T) {
	repo, _ := newTestRepo(t)
	createUser(t, repo, "alice", nil)
	bob := createUser(t, repo, "bob", nil)

	name := "alice"
	if err := repo.Update(context.Background(), bob, domain.UserChanges{Name: &name}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestUserRepository_UpdateAndDeleteMissingSucceed(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	role := "x"
	if err := repo.Update(ctx, "99", domain.UserChanges{Role: &role}); err != nil {
		t.Fatalf("Update missing: %v", err)
	}
	if err := repo.Delete(ctx, "99"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}

	id := createUser(t, repo, "alice", nil)
	for i := 0; i < 2; i++ {
		if err := repo.Delete(ctx, id); err != nil {
			t.Fatalf("Delete %d: %v", i, err)
		}
	}
	if _, err := repo.FindByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_MalformedPermissionSet(t *testing.T) {
	repo, db := newTestRepo(t)
	id := createUser(t, repo, "alice", nil)

	if _, err := db.Exec(`UPDATE users SET permitted_systems = '{"not":"a list"}' WHERE id = ?`, id); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), id); !errors.Is(err, domain.ErrMalformedPermissionSet) {
		t.Fatalf("expected ErrMalformedPermissionSet, got %v", err)
	}
}

func TestUserRepository_StoreUnavailable(t *testing.T) {
	repo, db := newTestRepo(t)
	_ = db.Close()

	if _, err := repo.List(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := repo.Ping(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from ping, got %v", err)
	}
}

func TestMySQLConfig_DSN(t *testing.T) {
	dsn := MySQLConfig{Host: "db.internal", User: "svc", Password: "p@ss", Database: "accounts", TLS: true}.DSN()
	for _, part := range []string{"svc:p@ss@", "tcp(db.internal:3306)/accounts", "tls=skip-verify"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("DSN %q missing %q", dsn, part)
		}
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	if _, err := Open(context.Background(), Config{Dialect: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}
