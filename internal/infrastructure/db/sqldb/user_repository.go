package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/pkg/permset"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const userColumns = `id, name, password_hash, role, permitted_systems, created_at, updated_at`

// Querier is the subset of *sql.DB the repository needs. Every statement is
// parameterized.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// UserRepository implements ports.UserRepository on a SQL pool.
type UserRepository struct {
	db  Querier
	now func() time.Time
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		id                   int64
		u                    domain.User
		permitted            any
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &u.Name, &u.PasswordHash, &u.Role, &permitted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	systems, err := permset.Decode(permitted)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	u.ID = strconv.FormatInt(id, 10)
	u.PermittedSystems = systems
	u.CreatedAt = unixToTime(createdAt)
	u.UpdatedAt = unixToTime(updatedAt)
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedPermissionSet) {
				return nil, err
			}
			return nil, storeErr("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users rows", err)
	}
	return users, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	key, ok := parseID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, key)
}

func (r *UserRepository) FindByName(ctx context.Context, name string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case errors.Is(err, domain.ErrMalformedPermissionSet):
		return nil, err
	case err != nil:
		return nil, storeErr("find user", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	blob, err := permset.Encode(user.PermittedSystems)
	if err != nil {
		return "", err
	}
	now := r.now().Unix()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, password_hash, role, permitted_systems, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.Name, user.PasswordHash, user.Role, blob, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicateName
		}
		return "", storeErr("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", storeErr("insert user id", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *UserRepository) Update(ctx context.Context, id string, changes domain.UserChanges) error {
	key, ok := parseID(id)
	if !ok || changes.Empty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	if changes.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *changes.PasswordHash)
	}
	if changes.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *changes.Role)
	}
	if changes.PermittedSystems != nil {
		blob, err := permset.Encode(*changes.PermittedSystems)
		if err != nil {
			return err
		}
		sets = append(sets, "permitted_systems = ?")
		args = append(args, blob)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().Unix(), key)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return storeErr("update user", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	key, ok := parseID(id)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, key); err != nil {
		return storeErr("delete user", err)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
	}
	return false
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
