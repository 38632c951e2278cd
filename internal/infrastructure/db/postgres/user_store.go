package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const storeName = "authoritative"

// UserStore is the authoritative store client. The users table's unique email
// index is the source of truth for conflicts.
type UserStore struct {
	db *sql.DB
}

var _ accounts.Store = (*UserStore)(nil)

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// ---------- helpers ----------

func scanUser(row *sql.Row) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Email,
		&ur.FullName,
		&ur.Role,
		&ur.AuthProvider,
		&ur.AuthProviderID,
		&ur.PasswordHash,
		&ur.AvatarURL,
		&ur.IsActive,
		&ur.CreatedAt,
		&ur.UpdatedAt,
	)
	return ur, err
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toDomainUser(ur userRow) domain.User {
	return domain.User{
		ID:             ur.ID,
		Email:          ur.Email,
		FullName:       ur.FullName,
		Role:           domain.Role(ur.Role),
		AuthProvider:   domain.AuthProvider(ur.AuthProvider),
		AuthProviderID: nullable(ur.AuthProviderID),
		PasswordHash:   nullable(ur.PasswordHash),
		AvatarURL:      nullable(ur.AvatarURL),
		IsActive:       ur.IsActive,
		CreatedAt:      ur.CreatedAt,
		UpdatedAt:      ur.UpdatedAt,
	}
}

func (s *UserStore) queryOne(ctx context.Context, q string, args ...any) (domain.User, error) {
	ur, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.User{}, MapError(storeName, err)
	}
	return toDomainUser(ur), nil
}

// ---------- accounts.Store ----------

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return s.queryOne(ctx, QueryByEmail, email)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.queryOne(ctx, QueryByID, id)
}

func (s *UserStore) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return s.queryOne(ctx, QueryInsert, InsertArgs(u)...)
}

// Upsert on the authoritative store resolves conflicts on email.
func (s *UserStore) Upsert(ctx context.Context, key accounts.UpsertKey, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.ErrMissingField("id")
	}
	if _, err := s.db.ExecContext(ctx, UpsertQuery(key), InsertArgs(u)...); err != nil {
		return MapError(storeName, err)
	}
	return nil
}

func (s *UserStore) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.queryOne(ctx, QueryUpdate, UpdateArgs(id, patch)...)
}
