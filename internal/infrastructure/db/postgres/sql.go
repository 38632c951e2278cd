package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// Column list and statements shared with the Postgres replica, which uses the
// same schema.
const (
	UserColumns = `id, email, full_name, role, auth_provider, auth_provider_id, password_hash, avatar_url, is_active, created_at, updated_at`

	QueryByID = `
SELECT ` + UserColumns + `
FROM users
WHERE id = $1 AND is_active = TRUE
LIMIT 1;
`

	QueryByEmail = `
SELECT ` + UserColumns + `
FROM users
WHERE email = $1 AND is_active = TRUE
LIMIT 1;
`

	QueryInsert = `
INSERT INTO users (id, email, full_name, role, auth_provider, auth_provider_id, password_hash, avatar_url, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING ` + UserColumns + `;
`

	upsertSet = `
    full_name = EXCLUDED.full_name,
    role = EXCLUDED.role,
    auth_provider = EXCLUDED.auth_provider,
    auth_provider_id = EXCLUDED.auth_provider_id,
    password_hash = EXCLUDED.password_hash,
    avatar_url = EXCLUDED.avatar_url,
    is_active = EXCLUDED.is_active,
    updated_at = EXCLUDED.updated_at`

	QueryUpsertByID = `
INSERT INTO users (id, email, full_name, role, auth_provider, auth_provider_id, password_hash, avatar_url, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
    email = EXCLUDED.email,` + upsertSet + `;
`

	QueryUpsertByEmail = `
INSERT INTO users (id, email, full_name, role, auth_provider, auth_provider_id, password_hash, avatar_url, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (email) DO UPDATE SET` + upsertSet + `;
`

	// COALESCE keeps columns whose patch field is nil.
	QueryUpdate = `
UPDATE users
SET full_name  = COALESCE($2, full_name),
    avatar_url = COALESCE($3, avatar_url),
    role       = COALESCE($4, role),
    is_active  = COALESCE($5, is_active),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + UserColumns + `;
`
)

// UpsertQuery returns the upsert statement for key.
func UpsertQuery(key accounts.UpsertKey) string {
	if key == accounts.KeyEmail {
		return QueryUpsertByEmail
	}
	return QueryUpsertByID
}

// Postgres error codes the stores report as typed conditions.
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// MapError turns a driver error into the domain code the replicated service
// classifies on. store names the store in the error metadata.
func MapError(store string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound()
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.Wrap(domain.KindConflict, domain.CodeEmailAlreadyExists, "email already registered", err)
		case pgUndefinedTable:
			return domain.ErrSchemaMissing(store, err)
		}
	}
	return domain.ErrStoreUnavailable(store, err)
}

// InsertArgs returns the positional arguments of the insert and upsert statements.
func InsertArgs(u domain.User) []any {
	return []any{
		u.ID,
		u.Email,
		u.FullName,
		string(u.Role),
		string(u.AuthProvider),
		u.AuthProviderID,
		u.PasswordHash,
		u.AvatarURL,
		u.IsActive,
		u.CreatedAt,
		u.UpdatedAt,
	}
}

// UpdateArgs returns the arguments of QueryUpdate.
func UpdateArgs(id string, p domain.UserPatch) []any {
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	return []any{id, p.FullName, p.AvatarURL, role, p.IsActive}
}
