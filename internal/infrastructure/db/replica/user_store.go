// Package replica is the Postgres replica store client. It shares the users
// schema with the authoritative store and sits behind a circuit breaker.
package replica

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/circuitbreaker"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/postgres"
)

const storeName = "replica"

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type UserStore struct {
	db      Querier
	breaker *circuitbreaker.Breaker
}

var _ accounts.Store = (*UserStore)(nil)

func NewUserStore(db Querier, breaker *circuitbreaker.Breaker) *UserStore {
	if breaker == nil {
		breaker = circuitbreaker.ForStore(circuitbreaker.Settings{Name: storeName})
	}
	return &UserStore{db: db, breaker: breaker}
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound()
	}
	return postgres.MapError(storeName, err)
}

func (s *UserStore) queryOne(ctx context.Context, q string, args ...any) (domain.User, error) {
	var u domain.User
	err := circuitbreaker.Guard(ctx, s.breaker, func(ctx context.Context) error {
		var role, provider string
		err := s.db.QueryRow(ctx, q, args...).Scan(
			&u.ID,
			&u.Email,
			&u.FullName,
			&role,
			&provider,
			&u.AuthProviderID,
			&u.PasswordHash,
			&u.AvatarURL,
			&u.IsActive,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return mapError(err)
		}
		u.Role = domain.Role(role)
		u.AuthProvider = domain.AuthProvider(provider)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.queryOne(ctx, postgres.QueryByID, id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return s.queryOne(ctx, postgres.QueryByEmail, email)
}

func (s *UserStore) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.queryOne(ctx, postgres.QueryInsert, postgres.InsertArgs(u)...)
}

// Upsert on the replica is normally keyed on id.
func (s *UserStore) Upsert(ctx context.Context, key accounts.UpsertKey, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.ErrMissingField("id")
	}
	return circuitbreaker.Guard(ctx, s.breaker, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, postgres.UpsertQuery(key), postgres.InsertArgs(u)...); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func (s *UserStore) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.queryOne(ctx, postgres.QueryUpdate, postgres.UpdateArgs(id, patch)...)
}
