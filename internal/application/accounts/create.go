package accounts

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/retry"
)

// Create writes a new record to the authoritative store and then to the
// replica. The authoritative record is returned whatever the replica outcome.
func (s *Service) Create(ctx context.Context, in NewUser) (domain.User, error) {
	u, err := s.build(in)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.authoritative.Insert(ctx, u)
	if err != nil {
		if passThrough(err) {
			return domain.User{}, err
		}
		return domain.User{}, s.authoritativeFailed(ctx, "create", err)
	}

	if s.asyncCreate {
		s.background(ctx, func(bctx context.Context) { s.replicate(bctx, created) })
	} else {
		s.replicate(ctx, created)
	}
	return created, nil
}

func (s *Service) build(in NewUser) (domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleStudent
	}
	if !domain.IsValidRole(string(role)) {
		return domain.User{}, domain.ErrInvalidRole(string(role))
	}

	provider := in.AuthProvider
	if provider == "" {
		provider = domain.ProviderLocal
	}
	if !domain.IsValidProvider(string(provider)) {
		return domain.User{}, domain.ErrInvalidField("auth_provider", "unsupported")
	}
	if provider == domain.ProviderLocal && in.Password == "" {
		return domain.User{}, domain.ErrMissingField("password")
	}

	now := s.now()
	u := domain.User{
		ID:             s.newID(),
		Email:          email,
		FullName:       in.FullName,
		Role:           role,
		AuthProvider:   provider,
		AuthProviderID: in.AuthProviderID,
		AvatarURL:      in.AvatarURL,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if in.Password != "" {
		if s.hasher == nil {
			return domain.User{}, domain.ErrHashFailed(errors.New("no password hasher configured"))
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return domain.User{}, domain.ErrHashFailed(err)
		}
		u.PasswordHash = &hash
	}
	return u, nil
}

// replicate inserts u into the replica under the retry policy. Isolated and
// schema-missing stores are not retried. A conflict means the record is
// already there.
func (s *Service) replicate(ctx context.Context, u domain.User) {
	const op = "create"

	attempts, err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.replica.Insert(ctx, u)
		if err != nil && domain.Is(err, domain.CodeEmailAlreadyExists) {
			return nil
		}
		return err
	}, retryable)

	if err == nil {
		s.rec.ReplicaWrite(op, OutcomeOK, attempts)
		return
	}

	sig := s.replicaFailed(ctx, op, u.ID, attempts, err)
	if sig.Expected() {
		s.rec.ReplicaWrite(op, OutcomeSkipped, attempts)
		return
	}
	s.rec.ReplicaWrite(op, OutcomeFailed, attempts)

	if s.sink == nil {
		return
	}
	f := SyncFailure{
		UserID:   u.ID,
		Email:    u.Email,
		Op:       op,
		Attempts: attempts,
		Reason:   err.Error(),
		At:       s.now(),
	}
	if perr := s.sink.ReplicaSyncAbandoned(context.WithoutCancel(ctx), f); perr != nil {
		lg := s.logger(ctx, op)
		lg.Warn().Err(perr).Str("user_id", u.ID).Msg("sync failure not published")
	}
}
