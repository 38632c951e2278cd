package auth

import (
	"context"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,password_strength"`
	FullName string `json:"full_name" validate:"required,max=120"`
	// Admins are never self-registered.
	Role string `json:"role" validate:"omitempty,oneof=STUDENT MENTOR"`
}

type RegisterResult struct {
	User   domain.User
	Tokens AuthTokens
}

// Register creates a LOCAL account and signs an access token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))

	res, err := s.register(ctx, in)
	s.auditResult("register", err, map[string]string{
		"email":   in.Email,
		"user_id": res.User.ID,
	})
	return res, err
}

func (s *Service) register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := s.input.check(in); err != nil {
		return RegisterResult{}, err
	}

	created, err := s.accounts.Create(ctx, accounts.NewUser{
		Email:        in.Email,
		FullName:     in.FullName,
		Password:     in.Password,
		Role:         domain.Role(in.Role),
		AuthProvider: domain.ProviderLocal,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	toks, err := s.issueTokens(created)
	if err != nil {
		return RegisterResult{User: created}, err
	}
	return RegisterResult{User: created, Tokens: toks}, nil
}
