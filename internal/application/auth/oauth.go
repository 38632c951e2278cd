package auth

import (
	"context"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// OAuthIdentity is what a provider callback established about the user.
// Exchanging the code with the provider happens before this layer.
type OAuthIdentity struct {
	Provider       string `json:"provider" validate:"required,oneof=GOOGLE GITHUB"`
	ProviderUserID string `json:"provider_user_id" validate:"required,max=255"`
	Email          string `json:"email" validate:"required,email,max=254"`
	FullName       string `json:"full_name" validate:"max=120"`
	AvatarURL      string `json:"avatar_url" validate:"omitempty,url"`
}

type OAuthLoginResult struct {
	User      domain.User
	Tokens    AuthTokens
	IsNewUser bool
}

// OAuthLogin signs in the account registered under the identity's email,
// creating it on first login. Created accounts carry the provider fields and
// no password.
func (s *Service) OAuthLogin(ctx context.Context, id OAuthIdentity) (OAuthLoginResult, error) {
	id.Provider = strings.ToUpper(strings.TrimSpace(id.Provider))
	id.Email = domain.NormalizeEmail(id.Email)
	id.FullName = strings.TrimSpace(id.FullName)

	res, err := s.oauthLogin(ctx, id)

	action := "oauth_login"
	if res.IsNewUser {
		action = "oauth_register"
	}
	s.auditResult(action, err, map[string]string{
		"provider": id.Provider,
		"email":    id.Email,
		"user_id":  res.User.ID,
	})
	return res, err
}

func (s *Service) oauthLogin(ctx context.Context, id OAuthIdentity) (OAuthLoginResult, error) {
	if err := s.input.check(id); err != nil {
		return OAuthLoginResult{}, err
	}

	u, isNew, err := s.findOrCreateOAuthUser(ctx, id)
	if err != nil {
		return OAuthLoginResult{}, err
	}

	toks, err := s.issueTokens(u)
	if err != nil {
		return OAuthLoginResult{}, err
	}
	return OAuthLoginResult{User: u, Tokens: toks, IsNewUser: isNew}, nil
}

func (s *Service) findOrCreateOAuthUser(ctx context.Context, id OAuthIdentity) (domain.User, bool, error) {
	u, err := s.accounts.FindByEmail(ctx, id.Email)
	if err == nil {
		return u, false, nil
	}
	if !domain.Is(err, domain.CodeUserNotFound) {
		return domain.User{}, false, err
	}

	name := id.FullName
	if name == "" {
		name = strings.SplitN(id.Email, "@", 2)[0]
	}
	created, err := s.accounts.Create(ctx, accounts.NewUser{
		Email:          id.Email,
		FullName:       name,
		Role:           domain.RoleStudent,
		AuthProvider:   domain.AuthProvider(id.Provider),
		AuthProviderID: domain.StringPtr(id.ProviderUserID),
		AvatarURL:      domain.StringPtr(id.AvatarURL),
	})
	if err == nil {
		return created, true, nil
	}

	// A concurrent first login won the insert, or the email belongs to a
	// disabled account. Only the former is resolvable.
	if domain.Is(err, domain.CodeEmailAlreadyExists) {
		u, ferr := s.accounts.FindByEmail(ctx, id.Email)
		if ferr == nil {
			return u, false, nil
		}
		if domain.Is(ferr, domain.CodeUserNotFound) {
			return domain.User{}, false, domain.ErrAccountDisabled()
		}
		return domain.User{}, false, ferr
	}
	return domain.User{}, false, err
}
