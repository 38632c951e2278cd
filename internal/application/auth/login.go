package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// Login authenticates a LOCAL account and issues an access token.
// IMPORTANT: must not leak whether the email exists (avoid user enumeration).
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)

	res, err := s.login(ctx, email, password)
	s.auditResult("login", err, map[string]string{
		"email":   email,
		"user_id": res.User.ID,
	})
	return res, err
}

func (s *Service) login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	u, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		// Hide not-found (and disabled) behind invalid credentials. Store
		// outages are not the caller's fault and are reported as such.
		if domain.Is(err, domain.CodeUserNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials()
		}
		return LoginResult{}, err
	}

	// OAuth-only accounts have no password to check.
	if !u.HasPassword() {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}
	if err := s.hasher.Compare(*u.PasswordHash, password); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	toks, err := s.issueTokens(u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Tokens: toks}, nil
}
