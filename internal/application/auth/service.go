package auth

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const defaultAccessTTL = 15 * time.Minute

type Service struct {
	accounts Accounts
	hasher   PasswordHasher
	signer   TokenSigner
	input    *inputValidator

	accessTTL time.Duration
	audit     func(action string, fields map[string]string)
}

type Config struct {
	AccessTTL time.Duration
}

func NewService(accounts Accounts, hasher PasswordHasher, signer TokenSigner, cfg Config) *Service {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	return &Service{
		accounts:  accounts,
		hasher:    hasher,
		signer:    signer,
		input:     newInputValidator(),
		accessTTL: ttl,
		audit:     func(string, map[string]string) {},
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// AuthTokens is the common token output of the login flows.
type AuthTokens struct {
	AccessToken string
	ExpiresIn   int64  // seconds
	TokenType   string // "Bearer"
}

type LoginResult struct {
	User   domain.User
	Tokens AuthTokens
}

func (s *Service) issueTokens(u domain.User) (AuthTokens, error) {
	access, err := s.signer.SignAccessToken(u.ID, string(u.Role), s.accessTTL)
	if err != nil {
		if domain.Is(err, domain.CodeTokenSignFailed) {
			return AuthTokens{}, err
		}
		return AuthTokens{}, domain.ErrTokenSignFailed(err)
	}
	return AuthTokens{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	if code := domain.CodeOf(err); code != "" {
		return code
	}
	return "non_domain_error"
}

// auditResult records action with result "ok" or "error" plus the error code.
func (s *Service) auditResult(action string, err error, fields map[string]string) {
	out := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["result"] = "ok"
	if err != nil {
		out["result"] = "error"
		out["error_code"] = domainCode(err)
	}
	s.audit(action, out)
}
