package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMySQL  = "mysql"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth  AuthConfig
	Store StoreConfig
	MySQL MySQLConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	// JWTSecret signs every issued token. It is never logged.
	JWTSecret  string        `env:"JWT_SECRET, required"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,   default=2h"`
	BcryptCost int           `env:"BCRYPT_COST, default=10"`

	ProtectAdminRoutes bool   `env:"PROTECT_ADMIN_ROUTES, default=false"`
	AdminRole          string `env:"ADMIN_ROLE,           default=admin"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS, default=5"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW,       default=15m"`
	// ThrottleWorkers applies failed-login writes in the background.
	ThrottleWorkers int `env:"LOGIN_THROTTLE_WORKERS, default=4"`
}

type StoreConfig struct {
	Driver   string `env:"STORE_DRIVER,    default=mysql"`
	MaxConns int    `env:"STORE_MAX_CONNS, default=10"`
	// SQLitePath is used when Driver is "sqlite".
	SQLitePath string `env:"SQLITE_PATH, default=accounts.db"`
}

type MySQLConfig struct {
	Host     string `env:"DB_HOST,     default=localhost"`
	Port     string `env:"DB_PORT,     default=3306"`
	User     string `env:"DB_USER,     default=root"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME,     default=accounts"`
	TLS      bool   `env:"DB_TLS,      default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type RedisConfig struct {
	// Addr empty disables the login throttle.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMySQL, StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported value %q", c.Store.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL: must be positive")
	}
	return nil
}

// IsDevelopment reports whether the process runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
