package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// UserStore keeps records in process memory. It serves as the replica in
// local development and as either store in tests.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string // email -> userID
}

var _ accounts.Store = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return activeOrNotFound(s.byID[id])
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return activeOrNotFound(u)
}

func (s *UserStore) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	if _, exists := s.byID[u.ID]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}

	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

// Upsert replaces the record matching key, or inserts it.
func (s *UserStore) Upsert(ctx context.Context, key accounts.UpsertKey, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.ErrMissingField("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID string
	switch key {
	case accounts.KeyEmail:
		if id, ok := s.byEmail[u.Email]; ok {
			existingID = id
			// the row keeps its id when matched by email
			u.ID = id
		}
	default:
		if _, ok := s.byID[u.ID]; ok {
			existingID = u.ID
		}
	}

	if owner, ok := s.byEmail[u.Email]; ok && owner != u.ID {
		return domain.ErrEmailAlreadyExists()
	}
	if existingID != "" {
		old := s.byID[existingID]
		if old.Email != u.Email {
			delete(s.byEmail, old.Email)
		}
		u.CreatedAt = old.CreatedAt
	}

	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *UserStore) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	u = patch.Apply(u)
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	return u, nil
}

// Len reports how many records are stored, active or not.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func activeOrNotFound(u domain.User) (domain.User, error) {
	if !u.IsActive {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}
