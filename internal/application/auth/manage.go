package auth

import (
	"context"
	"strconv"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// SetStatus enables or disables an account.
// Hard rules enforced here (not in callers):
// - Requires ADMIN
// - Nobody can disable themselves
func (s *Service) SetStatus(ctx context.Context, actorID, actorRole, targetID string, active bool) (domain.User, error) {
	actorID = strings.TrimSpace(actorID)
	actorRole = strings.ToUpper(strings.TrimSpace(actorRole))
	targetID = strings.TrimSpace(targetID)

	u, err := s.setStatus(ctx, actorID, actorRole, targetID, active)
	s.auditResult("admin.set_status", err, map[string]string{
		"actor_id":   actorID,
		"actor_role": actorRole,
		"target_id":  targetID,
		"active":     strconv.FormatBool(active),
	})
	return u, err
}

func (s *Service) setStatus(ctx context.Context, actorID, actorRole, targetID string, active bool) (domain.User, error) {
	if targetID == "" {
		return domain.User{}, domain.ErrMissingField("user_id")
	}
	if domain.RoleRank(actorRole) < domain.RoleRank(string(domain.RoleAdmin)) {
		return domain.User{}, domain.ErrInsufficientRole(string(domain.RoleAdmin))
	}
	if !active && actorID != "" && actorID == targetID {
		return domain.User{}, domain.ErrInvalidField("user_id", "cannot disable own account")
	}
	return s.accounts.SetActive(ctx, targetID, active)
}

// UpdateProfile changes the caller's display name and/or avatar.
func (s *Service) UpdateProfile(ctx context.Context, userID string, fullName, avatarURL *string) (domain.User, error) {
	userID = strings.TrimSpace(userID)

	u, err := s.updateProfile(ctx, userID, fullName, avatarURL)
	s.auditResult("profile.update", err, map[string]string{"user_id": userID})
	return u, err
}

func (s *Service) updateProfile(ctx context.Context, userID string, fullName, avatarURL *string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrMissingField("user_id")
	}
	if fullName == nil && avatarURL == nil {
		return domain.User{}, domain.ErrMissingField("full_name")
	}
	if fullName != nil {
		name := strings.TrimSpace(*fullName)
		if err := s.input.checkVar("full_name", name, "required,max=120"); err != nil {
			return domain.User{}, err
		}
		fullName = &name
	}
	if avatarURL != nil && *avatarURL != "" {
		if err := s.input.checkVar("avatar_url", *avatarURL, "url"); err != nil {
			return domain.User{}, err
		}
	}
	return s.accounts.UpdateProfile(ctx, userID, fullName, avatarURL)
}
