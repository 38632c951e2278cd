package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/circuitbreaker"
)

const (
	storeName   = "replica"
	userKeyPref = "account:user:"
	emailPref   = "account:email:"
)

// record is the JSON stored at account:user:<id>.
type record struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	AuthProvider   string    `json:"auth_provider"`
	AuthProviderID *string   `json:"auth_provider_id,omitempty"`
	PasswordHash   *string   `json:"password_hash,omitempty"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func fromDomain(u domain.User) record {
	return record{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           string(u.Role),
		AuthProvider:   string(u.AuthProvider),
		AuthProviderID: u.AuthProviderID,
		PasswordHash:   u.PasswordHash,
		AvatarURL:      u.AvatarURL,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (r record) toDomain() domain.User {
	return domain.User{
		ID:             r.ID,
		Email:          r.Email,
		FullName:       r.FullName,
		Role:           domain.Role(r.Role),
		AuthProvider:   domain.AuthProvider(r.AuthProvider),
		AuthProviderID: r.AuthProviderID,
		PasswordHash:   r.PasswordHash,
		AvatarURL:      r.AvatarURL,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// UserStore is a replica store client backed by Redis. Each record is a JSON
// document plus an email -> id index entry. Inactive records stay stored but
// are reported as absent by the finds.
type UserStore struct {
	rdb     *goredis.Client
	breaker *circuitbreaker.Breaker
	ttl     time.Duration
}

var _ accounts.Store = (*UserStore)(nil)

// NewUserStore returns a store writing entries with the given ttl (0 keeps
// them until overwritten).
func NewUserStore(c *Client, breaker *circuitbreaker.Breaker, ttl time.Duration) *UserStore {
	if breaker == nil {
		breaker = circuitbreaker.ForStore(circuitbreaker.Settings{Name: storeName})
	}
	return &UserStore{rdb: c.rdb, breaker: breaker, ttl: ttl}
}

func userKey(id string) string     { return userKeyPref + id }
func emailKey(email string) string { return emailPref + email }

func unavailable(err error) error { return domain.ErrStoreUnavailable(storeName, err) }

func isNil(err error) bool { return errors.Is(err, goredis.Nil) }

func (s *UserStore) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	return circuitbreaker.Guard(ctx, s.breaker, fn)
}

// getter is satisfied by both the client and a watched transaction.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func getRecord(ctx context.Context, c getter, id string) (record, bool, error) {
	raw, err := c.Get(ctx, userKey(id)).Bytes()
	if isNil(err) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, unavailable(err)
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return record{}, false, domain.ErrStoreUnavailable(storeName, err)
	}
	return r, true, nil
}

func getOwner(ctx context.Context, c getter, email string) (string, bool, error) {
	id, err := c.Get(ctx, emailKey(email)).Result()
	if isNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err)
	}
	return id, true, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	var u domain.User
	err := s.guard(ctx, func(ctx context.Context) error {
		r, ok, err := getRecord(ctx, s.rdb, id)
		if err != nil {
			return err
		}
		if !ok || !r.IsActive {
			return domain.ErrUserNotFound()
		}
		u = r.toDomain()
		return nil
	})
	return u, err
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	var u domain.User
	err := s.guard(ctx, func(ctx context.Context) error {
		id, ok, err := getOwner(ctx, s.rdb, email)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrUserNotFound()
		}
		r, ok, err := getRecord(ctx, s.rdb, id)
		if err != nil {
			return err
		}
		// a dangling index entry counts as a miss
		if !ok || !r.IsActive || r.Email != email {
			return domain.ErrUserNotFound()
		}
		u = r.toDomain()
		return nil
	})
	return u, err
}

func (s *UserStore) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	err := s.guard(ctx, func(ctx context.Context) error {
		return s.write(ctx, u, true)
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserStore) Upsert(ctx context.Context, key accounts.UpsertKey, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.ErrMissingField("id")
	}
	return s.guard(ctx, func(ctx context.Context) error {
		if key == accounts.KeyEmail {
			owner, ok, err := getOwner(ctx, s.rdb, u.Email)
			if err != nil {
				return err
			}
			if ok {
				u.ID = owner
			}
		}
		return s.write(ctx, u, false)
	})
}

// write stores u and its email index in one MULTI, watching both keys. With
// insertOnly set an existing id or email is a conflict.
func (s *UserStore) write(ctx context.Context, u domain.User, insertOnly bool) error {
	payload, err := json.Marshal(fromDomain(u))
	if err != nil {
		return domain.ErrInternal(err)
	}

	txf := func(tx *goredis.Tx) error {
		owner, taken, err := getOwner(ctx, tx, u.Email)
		if err != nil {
			return err
		}
		if taken && (insertOnly || owner != u.ID) {
			return domain.ErrEmailAlreadyExists()
		}

		old, exists, err := getRecord(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if exists && insertOnly {
			return domain.ErrEmailAlreadyExists()
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			if exists && old.Email != u.Email {
				p.Del(ctx, emailKey(old.Email))
			}
			p.Set(ctx, userKey(u.ID), payload, s.ttl)
			p.Set(ctx, emailKey(u.Email), u.ID, s.ttl)
			return nil
		})
		if err != nil {
			return unavailable(err)
		}
		return nil
	}

	return watchErr(s.rdb.Watch(ctx, txf, userKey(u.ID), emailKey(u.Email)))
}

// watchErr reports a transaction aborted by a concurrent writer as unavailable.
func watchErr(err error) error {
	if errors.Is(err, goredis.TxFailedErr) {
		return unavailable(err)
	}
	return err
}

func (s *UserStore) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	var out domain.User
	err := s.guard(ctx, func(ctx context.Context) error {
		return watchErr(s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			r, ok, err := getRecord(ctx, tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrUserNotFound()
			}
			u := patch.Apply(r.toDomain())
			u.UpdatedAt = time.Now().UTC()
			payload, err := json.Marshal(fromDomain(u))
			if err != nil {
				return domain.ErrInternal(err)
			}
			if _, err := tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Set(ctx, userKey(id), payload, goredis.KeepTTL)
				return nil
			}); err != nil {
				return unavailable(err)
			}
			out = u
			return nil
		}, userKey(id)))
	})
	return out, err
}
