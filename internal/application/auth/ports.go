package auth

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

/*
Accounts
--------
The replicated record service as seen by the auth flows.
Only describes WHAT the flows need; accounts.Service implements it.
*/
type Accounts interface {
	Create(ctx context.Context, in accounts.NewUser) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	SetActive(ctx context.Context, id string, active bool) (domain.User, error)
	UpdateProfile(ctx context.Context, id string, fullName, avatarURL *string) (domain.User, error)
}

/*
PasswordHasher
--------------
Abstracts bcrypt. Compare returns nil on match.
*/
type PasswordHasher interface {
	Compare(hash string, password string) error
}

/*
TokenSigner
-----------
Issues and verifies access tokens (JWT).
*/
type TokenClaims struct {
	UserID string
	Role   string
	Exp    time.Time
}

type TokenSigner interface {
	SignAccessToken(userID string, role string, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}
