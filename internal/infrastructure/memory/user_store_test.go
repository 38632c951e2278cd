package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func newUser(id, email string) domain.User {
	return domain.User{ID: id, Email: email, FullName: "N", Role: domain.RoleStudent, AuthProvider: domain.ProviderLocal, IsActive: true}
}

func TestUserStore_InsertAndFind(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, newUser("u1", "A@X.com"))
	require.NoError(t, err)

	u, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	u, err = s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestUserStore_InsertConflict(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, newUser("u1", "a@x.com"))
	require.NoError(t, err)

	_, err = s.Insert(ctx, newUser("u2", "a@x.com"))
	assert.True(t, domain.Is(err, domain.CodeEmailAlreadyExists))

	_, err = s.Insert(ctx, newUser("u1", "b@x.com"))
	assert.True(t, domain.Is(err, domain.CodeEmailAlreadyExists))
}

func TestUserStore_InsertValidation(t *testing.T) {
	s := NewUserStore()

	_, err := s.Insert(context.Background(), newUser("", "a@x.com"))
	assert.True(t, domain.Is(err, domain.CodeMissingField))
	_, err = s.Insert(context.Background(), newUser("u1", " "))
	assert.True(t, domain.Is(err, domain.CodeMissingField))
}

func TestUserStore_InactiveHidden(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	u := newUser("u1", "a@x.com")
	u.IsActive = false
	_, err := s.Insert(ctx, u)
	require.NoError(t, err)

	_, err = s.FindByID(ctx, "u1")
	assert.True(t, domain.Is(err, domain.CodeUserNotFound))
	_, err = s.FindByEmail(ctx, "a@x.com")
	assert.True(t, domain.Is(err, domain.CodeUserNotFound))
}

func TestUserStore_UpsertByID(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, accounts.KeyID, newUser("u1", "a@x.com")))

	u := newUser("u1", "a@x.com")
	u.FullName = "Updated"
	require.NoError(t, s.Upsert(ctx, accounts.KeyID, u))

	got, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.FullName)
	assert.Equal(t, 1, s.Len())
}

func TestUserStore_UpsertByEmailKeepsID(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	_, err := s.Insert(ctx, newUser("u1", "a@x.com"))
	require.NoError(t, err)

	u := newUser("other", "a@x.com")
	u.FullName = "ByEmail"
	require.NoError(t, s.Upsert(ctx, accounts.KeyEmail, u))

	got, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "ByEmail", got.FullName)
	assert.Equal(t, 1, s.Len())
}

func TestUserStore_UpsertEmailTakenByOther(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, accounts.KeyID, newUser("u1", "a@x.com")))
	require.NoError(t, s.Upsert(ctx, accounts.KeyID, newUser("u2", "b@x.com")))

	err := s.Upsert(ctx, accounts.KeyID, newUser("u2", "a@x.com"))
	assert.True(t, domain.Is(err, domain.CodeEmailAlreadyExists))

	got, err := s.FindByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.ID)
}

func TestUserStore_Update(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	_, err := s.Insert(ctx, newUser("u1", "a@x.com"))
	require.NoError(t, err)

	off := false
	got, err := s.Update(ctx, "u1", domain.UserPatch{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	on := true
	got, err = s.Update(ctx, "u1", domain.UserPatch{IsActive: &on})
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = s.Update(ctx, "nope", domain.UserPatch{IsActive: &on})
	assert.True(t, domain.Is(err, domain.CodeUserNotFound))
}

// The in-memory store behaves as a replica behind the replicated service.
func TestUserStore_BehindService(t *testing.T) {
	auth, replica := NewUserStore(), NewUserStore()
	svc := accounts.NewService(auth, replica)
	ctx := context.Background()

	_, err := auth.Insert(ctx, newUser("u1", "cold@x.com"))
	require.NoError(t, err)

	_, err = svc.FindByEmail(ctx, "cold@x.com")
	require.NoError(t, err)
	svc.Wait()

	got, err := replica.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "cold@x.com", got.Email)
}
