package postgres

import (
	"database/sql"
	"time"
)

type userRow struct {
	ID             string
	Email          string
	FullName       string
	Role           string
	AuthProvider   string
	AuthProviderID sql.NullString
	PasswordHash   sql.NullString
	AvatarURL      sql.NullString
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
