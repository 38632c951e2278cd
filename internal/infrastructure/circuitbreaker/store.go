package circuitbreaker

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// ForStore returns a breaker that trips only on store faults. Not-found,
// conflicts and validation errors pass through without counting.
func ForStore(s Settings) *Breaker {
	s.IsFailure = domain.IsStoreFault
	return New(s)
}

// Guard runs fn through b and reports a refused call as store_isolated.
func Guard(ctx context.Context, b *Breaker, fn func(ctx context.Context) error) error {
	err := b.Do(ctx, fn)
	if errors.Is(err, ErrOpen) {
		return domain.ErrStoreIsolated(b.Name(), err)
	}
	return err
}
