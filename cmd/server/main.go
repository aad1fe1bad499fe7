// @title        Account Service API
// @version      1.0
// @description  User accounts, password login and bearer token verification.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/99minutos/account-service/internal/api"
	"github.com/99minutos/account-service/internal/api/handler"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/core/service"
	mongostore "github.com/99minutos/account-service/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/account-service/internal/infrastructure/db/redis"
	"github.com/99minutos/account-service/internal/infrastructure/db/sqldb"
	"github.com/99minutos/account-service/internal/infrastructure/queue"
	"github.com/99minutos/account-service/internal/pkg/config"
	"github.com/99minutos/account-service/internal/pkg/password"
	"github.com/99minutos/account-service/internal/pkg/token"
	"github.com/99minutos/account-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "account-service",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, storeCheck, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("credential store unavailable")
	}
	defer closeStore()

	checks := map[string]handler.CheckFunc{"store": storeCheck}

	var limiter ports.LoginLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis unavailable")
		}
		defer rdb.Close()

		dispatcher := queue.NewDispatcher(
			cfg.Auth.ThrottleWorkers,
			redisstore.NewLoginLimiter(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow),
			log,
		)
		dispatcher.Start(context.Background())
		defer dispatcher.Close()

		limiter = dispatcher
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_ADDR not set, login throttling disabled")
	}

	tokens, err := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token manager")
	}
	hasher := password.NewHasher(cfg.Auth.BcryptCost)

	accounts := service.NewAccountService(repo, hasher, tokens, limiter, log)

	e := api.NewRouter(api.Deps{
		Service:            accounts,
		Verifier:           tokens,
		Log:                log,
		Checks:             checks,
		ProtectAdminRoutes: cfg.Auth.ProtectAdminRoutes,
		AdminRole:          cfg.Auth.AdminRole,
	})

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.Store.Driver).
			Int("bcrypt_cost", hasher.Cost()).
			Dur("token_ttl", tokens.TTL()).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// openStore connects the credential store selected by STORE_DRIVER and
// returns it with its readiness probe and a release func.
func openStore(ctx context.Context, cfg *config.Config) (ports.UserRepository, handler.CheckFunc, func(), error) {
	log := logger.Get()

	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: uint64(cfg.Store.MaxConns),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		return repo, repo.Ping, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
		}, nil

	default:
		sqlCfg := sqldb.Config{MaxOpenConns: cfg.Store.MaxConns}
		if cfg.Store.Driver == config.StoreSQLite {
			sqlCfg.Dialect = sqldb.SQLite
			sqlCfg.DSN = sqldb.SQLiteDSN(cfg.Store.SQLitePath)
		} else {
			sqlCfg.Dialect = sqldb.MySQL
			sqlCfg.DSN = sqldb.MySQLConfig{
				Host:     cfg.MySQL.Host,
				Port:     cfg.MySQL.Port,
				User:     cfg.MySQL.User,
				Password: cfg.MySQL.Password,
				Database: cfg.MySQL.Database,
				TLS:      cfg.MySQL.TLS,
			}.DSN()
		}

		db, err := sqldb.Open(ctx, sqlCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := sqldb.NewUserRepository(db)
		return repo, repo.Ping, func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("store close")
			}
		}, nil
	}
}
