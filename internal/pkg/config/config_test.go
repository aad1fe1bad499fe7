package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" || cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected process defaults: %+v", cfg)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour || cfg.Auth.BcryptCost != 10 {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Auth.ProtectAdminRoutes || cfg.Auth.AdminRole != "admin" {
		t.Fatalf("unexpected route protection defaults: %+v", cfg.Auth)
	}
	if cfg.Store.Driver != StoreMySQL || cfg.Store.MaxConns != 10 {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.MySQL.Host != "localhost" || cfg.MySQL.Port != "3306" || cfg.MySQL.Database != "accounts" {
		t.Fatalf("unexpected mysql defaults: %+v", cfg.MySQL)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis should be disabled by default")
	}
	if cfg.Auth.LoginMaxAttempts != 5 || cfg.Auth.LoginWindow != 15*time.Minute || cfg.Auth.ThrottleWorkers != 4 {
		t.Fatalf("unexpected throttle defaults: %+v", cfg.Auth)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "s3cret",
		"ENV":                  "production",
		"TOKEN_TTL":            "30m",
		"STORE_DRIVER":         "sqlite",
		"SQLITE_PATH":          "/tmp/x.db",
		"PROTECT_ADMIN_ROUTES": "true",
		"REDIS_ADDR":           "redis:6379",
		"LOGIN_MAX_ATTEMPTS":   "3",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDevelopment() || cfg.Auth.TokenTTL != 30*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Store.Driver != StoreSQLite || cfg.Store.SQLitePath != "/tmp/x.db" {
		t.Fatalf("store overrides not applied: %+v", cfg.Store)
	}
	if !cfg.Auth.ProtectAdminRoutes || cfg.Auth.LoginMaxAttempts != 3 || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("auth overrides not applied: %+v", cfg.Auth)
	}
}

func TestLoad_SecretRequired(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected missing JWT_SECRET error, got %v", err)
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":   "s3cret",
		"STORE_DRIVER": "postgres",
	}))
	if err == nil || !strings.Contains(err.Error(), "STORE_DRIVER") {
		t.Fatalf("expected STORE_DRIVER error, got %v", err)
	}
}
