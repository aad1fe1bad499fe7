// Package sqldb is the relational credential store. It runs on MySQL in
// production and on an embedded SQLite file for local runs and tests; both
// share one schema shape and the same parameterized statements.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL engine. The value doubles as the
// database/sql driver name.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxConns = 10
)

// Config captures the settings for opening the store's connection pool.
type Config struct {
	Dialect Dialect
	DSN     string
	// MaxOpenConns bounds the pool; callers block when every connection is
	// in use. Defaults to 10.
	MaxOpenConns int
	Timeout      time.Duration
}

// MySQLConfig holds discrete MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	// TLS enables encrypted connections without certificate verification,
	// as required by managed hosts that front MySQL with self-signed certs.
	TLS bool
}

// DSN renders c in go-sql-driver/mysql form.
func (c MySQLConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	port := c.Port
	if port == "" {
		port = "3306"
	}
	mc.Addr = net.JoinHostPort(c.Host, port)
	mc.DBName = c.Database
	if c.TLS {
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN()
}

// SQLiteDSN returns a DSN for the database file at path with a busy timeout
// so concurrent writers queue instead of failing.
func SQLiteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open creates the connection pool, verifies connectivity with a ping and
// ensures the schema exists. A default timeout is applied when none is
// provided.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	switch cfg.Dialect {
	case MySQL, SQLite:
	default:
		return nil, fmt.Errorf("sql open: unsupported dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql ping: %w", err)
	}

	if err := Migrate(pingCtx, db, cfg.Dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the users table if it does not exist. The unique key on
// name is the authoritative uniqueness guard; on MySQL the column uses a
// binary collation so names compare case-sensitively.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var ddl string
	switch dialect {
	case MySQL:
		ddl = `CREATE TABLE IF NOT EXISTS users (
			id                BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name              VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
			password_hash     VARCHAR(255) NOT NULL,
			role              VARCHAR(64)  NOT NULL DEFAULT '',
			permitted_systems JSON         NOT NULL,
			created_at        BIGINT       NOT NULL,
			updated_at        BIGINT       NOT NULL,
			UNIQUE KEY uq_users_name (name)
		) DEFAULT CHARSET=utf8mb4`
	case SQLite:
		ddl = `CREATE TABLE IF NOT EXISTS users (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			name              TEXT    NOT NULL UNIQUE,
			password_hash     TEXT    NOT NULL,
			role              TEXT    NOT NULL DEFAULT '',
			permitted_systems TEXT    NOT NULL DEFAULT '[]',
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL
		)`
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
