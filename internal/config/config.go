package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/retry"
)

// Replica drivers.
const (
	ReplicaMemory   = "memory"
	ReplicaPostgres = "postgres"
	ReplicaRedis    = "redis"
)

type Config struct {
	//App
	Env string // dev / staging / prod

	// Authoritative store
	AuthDBDSN string
	DBDebug   bool

	// Replica store
	ReplicaDriver string
	ReplicaDBDSN  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration // 0 keeps records until overwritten

	// Replication behaviour
	Retry             retry.Config
	ReadRepairTimeout time.Duration
	AsyncReplication  bool

	// Replica circuit breaker
	BreakerMaxFailures   int
	BreakerResetTimeout  time.Duration
	BreakerHalfOpenCalls int

	// Sync-abandoned events; empty RabbitURL logs them instead
	RabbitURL      string
	RabbitExchange string

	//Auth / Security
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int

	MetricsAddr string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		ReplicaDriver:  strings.ToLower(getEnv("REPLICA_DRIVER", ReplicaMemory)),
		ReplicaDBDSN:   os.Getenv("REPLICA_DB_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "account.events"),
		JWTIssuer:      getEnv("JWT_ISSUER", "account-service"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		Retry:          retry.LoadConfig(),
	}

	// required values
	cfg.AuthDBDSN = os.Getenv("AUTH_DB_DSN")
	if cfg.AuthDBDSN == "" {
		return nil, fmt.Errorf("missing required env var: AUTH_DB_DSN")
	}
	if err := validatePostgresDSN(cfg.AuthDBDSN); err != nil {
		return nil, fmt.Errorf("AUTH_DB_DSN: %w", err)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	switch cfg.ReplicaDriver {
	case ReplicaMemory:
	case ReplicaPostgres:
		if cfg.ReplicaDBDSN == "" {
			return nil, fmt.Errorf("missing required env var: REPLICA_DB_DSN (REPLICA_DRIVER=postgres)")
		}
		if err := validatePostgresDSN(cfg.ReplicaDBDSN); err != nil {
			return nil, fmt.Errorf("REPLICA_DB_DSN: %w", err)
		}
	case ReplicaRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("missing required env var: REDIS_ADDR (REPLICA_DRIVER=redis)")
		}
	default:
		return nil, fmt.Errorf("invalid REPLICA_DRIVER %q: want memory, postgres or redis", cfg.ReplicaDriver)
	}

	var err error
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.AsyncReplication, err = getBool("REPLICA_ASYNC_CREATE", false); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RedisTTL, err = getDuration("REDIS_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.ReadRepairTimeout, err = getDuration("READ_REPAIR_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerMaxFailures, err = getInt("BREAKER_MAX_FAILURES", 5); err != nil {
		return nil, err
	}
	if cfg.BreakerResetTimeout, err = getDuration("BREAKER_RESET_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerHalfOpenCalls, err = getInt("BREAKER_HALF_OPEN_CALLS", 1); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validatePostgresDSN accepts postgres:// and postgresql:// URLs naming a database.
func validatePostgresDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid dsn: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("dsn must name a database")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration for %s: %q", key, v)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return i, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
