package accounts

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// Update applies patch to the authoritative record only. The replica copy is
// refreshed the next time a read misses it.
func (s *Service) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if patch.Empty() {
		return domain.User{}, domain.ErrInvalidField("patch", "empty")
	}
	if patch.Role != nil && !domain.IsValidRole(string(*patch.Role)) {
		return domain.User{}, domain.ErrInvalidRole(string(*patch.Role))
	}

	u, err := s.authoritative.Update(ctx, id, patch)
	if err != nil {
		if passThrough(err) {
			return domain.User{}, err
		}
		return domain.User{}, s.authoritativeFailed(ctx, "update", err)
	}
	return u, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (domain.User, error) {
	return s.Update(ctx, id, domain.UserPatch{IsActive: &active})
}

// UpdateProfile changes the display fields. Nil arguments are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, id string, fullName, avatarURL *string) (domain.User, error) {
	return s.Update(ctx, id, domain.UserPatch{FullName: fullName, AvatarURL: avatarURL})
}
