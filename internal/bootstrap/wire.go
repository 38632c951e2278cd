package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/circuitbreaker"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/migrations"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/replica"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/metrics"
)

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool, lg zerolog.Logger) (*sql.DB, error)

	NewPool func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

	NewRedis func(o redis.Options) RedisClient

	NewPublisher func(url, exchange string) (Publisher, error)

	Registry *prometheus.Registry

	Logger zerolog.Logger
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

type Publisher interface {
	accounts.SyncFailureSink
	Close() error
}

// App is the wired account service.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Accounts *accounts.Service
	Auth     *auth.Service
	Metrics  *prometheus.Registry
	Breaker  *circuitbreaker.Breaker // nil for the memory replica

	authDB    *sql.DB
	replicaDB *sql.DB // set when the replica is Postgres

	cleanupFns []func()
}

func New(ctx context.Context) (*App, error) {
	return NewWithDeps(ctx, DefaultDeps())
}

func DefaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		NewPool:    config.NewPool,
		NewRedis: func(o redis.Options) RedisClient {
			return redis.New(o)
		},
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq.NewPublisher(url, exchange)
		},
		Registry: prometheus.NewRegistry(),
		Logger:   zerolog.Nop(),
	}
}

/*
========================
 Core bootstrap logic
========================
*/

func NewWithDeps(ctx context.Context, deps Deps) (*App, error) {
	lg := deps.Logger

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Log: lg, Metrics: deps.Registry}
	if app.Metrics == nil {
		app.Metrics = prometheus.NewRegistry()
	}
	rec := metrics.New(app.Metrics)

	// 1) authoritative store
	db, err := deps.NewDB(cfg.AuthDBDSN, cfg.DBDebug, lg)
	if err != nil {
		return nil, fmt.Errorf("authoritative store: %w", err)
	}
	app.authDB = db
	app.addCleanup(func() { _ = db.Close() })
	authStore := postgres.NewUserStore(db)

	// 2) replica store
	replicaStore, err := app.newReplica(ctx, deps, rec)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 3) sync-abandoned sink
	sink, err := app.newSink(deps)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 4) core
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	app.Accounts = accounts.NewService(authStore, replicaStore,
		accounts.WithLogger(lg),
		accounts.WithRetry(cfg.Retry),
		accounts.WithRecorder(rec),
		accounts.WithSyncFailureSink(sink),
		accounts.WithHasher(hasher),
		accounts.WithRepairTimeout(cfg.ReadRepairTimeout),
		accounts.WithAsyncReplication(cfg.AsyncReplication),
	)
	// background replica work finishes before stores close
	app.addCleanup(app.Accounts.Wait)

	// 5) callers
	lg.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	app.Auth = auth.NewService(app.Accounts, hasher, signer, auth.Config{
		AccessTTL: cfg.AccessTokenTTL,
	}).WithAudit(audit.New(lg).Record)

	return app, nil
}

func (a *App) newReplica(ctx context.Context, deps Deps, rec *metrics.Recorder) (accounts.Store, error) {
	cfg := a.Config

	switch cfg.ReplicaDriver {
	case config.ReplicaPostgres:
		pool, err := deps.NewPool(ctx, cfg.ReplicaDBDSN)
		if err != nil {
			return nil, fmt.Errorf("replica pool: %w", err)
		}
		a.addCleanup(pool.Close)
		a.replicaDB = stdlib.OpenDBFromPool(pool)
		a.addCleanup(func() { _ = a.replicaDB.Close() })

		a.Breaker = a.newBreaker(rec)
		return replica.NewUserStore(pool, a.Breaker), nil

	case config.ReplicaRedis:
		c := deps.NewRedis(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.addCleanup(func() { _ = c.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		// an unreachable replica is degraded, not fatal
		if err := c.Ping(pingCtx); err != nil {
			a.Log.Warn().Err(err).Msg("redis replica unreachable at startup")
		} else {
			a.Log.Info().Msg("redis replica connected")
		}

		rc, ok := c.(*redis.Client)
		if !ok {
			return nil, fmt.Errorf("bootstrap: NewRedis did not return *redis.Client")
		}
		a.Breaker = a.newBreaker(rec)
		return redis.NewUserStore(rc, a.Breaker, cfg.RedisTTL), nil

	default:
		a.Log.Info().Msg("using in-memory replica")
		return memory.NewUserStore(), nil
	}
}

func (a *App) newBreaker(rec *metrics.Recorder) *circuitbreaker.Breaker {
	cfg := a.Config
	lg := a.Log
	return circuitbreaker.ForStore(circuitbreaker.Settings{
		Name:             "replica",
		MaxFailures:      cfg.BreakerMaxFailures,
		ResetTimeout:     cfg.BreakerResetTimeout,
		HalfOpenMaxCalls: cfg.BreakerHalfOpenCalls,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			rec.BreakerStateChange(name, from, to)
			lg.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

func (a *App) newSink(deps Deps) (accounts.SyncFailureSink, error) {
	cfg := a.Config
	if cfg.RabbitURL == "" {
		return memory.NewLogSink(a.Log), nil
	}

	pub, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		if cfg.Env == "dev" {
			a.Log.Warn().Err(err).Msg("rabbitmq unavailable; logging abandoned syncs")
			return memory.NewLogSink(a.Log), nil
		}
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}
	a.addCleanup(func() { _ = pub.Close() })
	return pub, nil
}

// Migrate applies the embedded migrations to the authoritative store and,
// when it is Postgres, to the replica.
func (a *App) Migrate(ctx context.Context) error {
	if err := migrations.Up(ctx, a.authDB, "authoritative"); err != nil {
		return err
	}
	if a.replicaDB != nil {
		if err := migrations.Up(ctx, a.replicaDB, "replica"); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for background replica work, then releases stores in reverse
// order of creation.
func (a *App) Close() {
	for i := len(a.cleanupFns) - 1; i >= 0; i-- {
		a.cleanupFns[i]()
	}
	a.cleanupFns = nil
}

func (a *App) addCleanup(fn func()) {
	a.cleanupFns = append(a.cleanupFns, fn)
}
