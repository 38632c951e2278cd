package domain

import (
	"strings"
	"time"
)

// User is the account record exchanged between the stores and their callers.
// ID is assigned once at creation and never changes. Records are disabled
// through IsActive and never hard-deleted.
type User struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	AuthProvider   AuthProvider
	AuthProviderID *string
	PasswordHash   *string // nil for OAuth accounts
	AvatarURL      *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserPatch carries the mutable fields of an update. Nil fields are left unchanged.
type UserPatch struct {
	FullName  *string
	AvatarURL *string
	Role      *Role
	IsActive  *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FullName == nil && p.AvatarURL == nil && p.Role == nil && p.IsActive == nil
}

// Apply returns u with the patch applied.
func (p UserPatch) Apply(u User) User {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.AvatarURL != nil {
		u.AvatarURL = p.AvatarURL
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	return u
}

// NormalizeEmail is the case policy shared by every store: emails are compared
// trimmed and lower-cased, matching the authoritative unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
