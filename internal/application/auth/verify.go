package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// VerifyToken checks an access token and returns the account it belongs to.
// Tokens of disabled accounts are rejected.
func (s *Service) VerifyToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrTokenInvalid()
	}

	claims, err := s.signer.VerifyAccessToken(token)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return domain.User{}, domain.ErrTokenInvalid()
		}
		return domain.User{}, err
	}
	return u, nil
}
