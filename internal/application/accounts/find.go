package accounts

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type lookup struct {
	op            string
	key           string
	replica       func(ctx context.Context, key string) (domain.User, error)
	authoritative func(ctx context.Context, key string) (domain.User, error)
}

// FindByID returns the active record with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return s.find(ctx, lookup{
		op:            "find_by_id",
		key:           id,
		replica:       s.replica.FindByID,
		authoritative: s.authoritative.FindByID,
	})
}

// FindByEmail returns the active record with the given email. The email is
// normalized before either store is queried.
func (s *Service) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return s.find(ctx, lookup{
		op:            "find_by_email",
		key:           email,
		replica:       s.replica.FindByEmail,
		authoritative: s.authoritative.FindByEmail,
	})
}

func (s *Service) find(ctx context.Context, lk lookup) (domain.User, error) {
	u, err := lk.replica(ctx, lk.key)
	switch {
	case err == nil && u.IsActive:
		s.rec.ReplicaRead(lk.op, OutcomeHit)
		return u, nil
	case err == nil, domain.Is(err, domain.CodeUserNotFound):
		s.rec.ReplicaRead(lk.op, OutcomeMiss)
	default:
		s.rec.ReplicaRead(lk.op, OutcomeError)
		s.replicaFailed(ctx, lk.op, "", 0, err)
	}

	u, err = lk.authoritative(ctx, lk.key)
	if err != nil {
		if passThrough(err) {
			return domain.User{}, err
		}
		return domain.User{}, s.authoritativeFailed(ctx, lk.op, err)
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrUserNotFound()
	}

	s.repair(ctx, u)
	return u, nil
}

// repair upserts an authoritative record into the replica in the background.
// It is attempted once; the caller does not wait for it.
func (s *Service) repair(ctx context.Context, u domain.User) {
	s.background(ctx, func(bctx context.Context) {
		if err := s.replica.Upsert(bctx, KeyID, u); err != nil {
			sig := s.replicaFailed(bctx, "read_repair", u.ID, 0, err)
			if sig.Expected() {
				s.rec.Repair(OutcomeSkipped)
			} else {
				s.rec.Repair(OutcomeFailed)
			}
			return
		}
		s.rec.Repair(OutcomeOK)
	})
}
