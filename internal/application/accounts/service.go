package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/reqctx"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/retry"
)

const defaultRepairTimeout = 5 * time.Second

// Service keeps account records consistent between an authoritative store and
// a local replica. Writes go to the authoritative store first and are then
// replicated best-effort; reads try the replica first, fall back to the
// authoritative store and repair the replica in the background.
//
// Replica failures never reach the caller. Only authoritative failures,
// conflicts and not-found do.
type Service struct {
	authoritative Store
	replica       Store

	log    zerolog.Logger
	retry  retry.Config
	rec    Recorder
	sink   SyncFailureSink
	newID  func() string
	hasher PasswordHasher
	now    func() time.Time

	repairTimeout time.Duration
	asyncCreate   bool

	bg sync.WaitGroup
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func WithRetry(c retry.Config) Option { return func(s *Service) { s.retry = c } }

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

func WithSyncFailureSink(sink SyncFailureSink) Option { return func(s *Service) { s.sink = sink } }

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithHasher(h PasswordHasher) Option { return func(s *Service) { s.hasher = h } }

func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRepairTimeout bounds each background replica call.
func WithRepairTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.repairTimeout = d
		}
	}
}

// WithAsyncReplication makes Create return right after the authoritative write
// and replicate in the background.
func WithAsyncReplication(on bool) Option { return func(s *Service) { s.asyncCreate = on } }

func NewService(authoritative, replica Store, opts ...Option) *Service {
	s := &Service{
		authoritative: authoritative,
		replica:       replica,
		log:           zerolog.Nop(),
		retry:         retry.Config{MaxAttempts: retry.DefaultMaxAttempts},
		rec:           nopRecorder{},
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
		repairTimeout: defaultRepairTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until background replica work started so far has finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// background runs fn detached from the caller's cancellation but bounded by
// the repair timeout. Values such as the correlation id are kept.
func (s *Service) background(ctx context.Context, fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.repairTimeout)
		defer cancel()
		fn(bctx)
	}()
}

func (s *Service) logger(ctx context.Context, op string) zerolog.Logger {
	c := s.log.With().Str("op", op)
	if id := reqctx.CorrelationID(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	return c.Logger()
}

// replicaFailed logs an absorbed replica failure at a level matching its signal.
func (s *Service) replicaFailed(ctx context.Context, op, userID string, attempts int, err error) Signal {
	sig := Classify(err)
	lg := s.logger(ctx, op)

	ev := lg.Warn()
	if sig.Expected() {
		ev = lg.Info()
	}
	ev = ev.Err(domain.ErrReplicaDegraded(op, err)).
		Str("signal", sig.String()).
		Str("user_id", userID)
	if attempts > 0 {
		ev = ev.Int("attempts", attempts)
	}
	ev.Msg("replica degraded")
	return sig
}

func (s *Service) authoritativeFailed(ctx context.Context, op string, err error) error {
	s.rec.AuthoritativeFailure(op)
	lg := s.logger(ctx, op)
	lg.Error().Err(err).Msg("authoritative store failed")
	return domain.ErrAuthoritativeUnavailable(err)
}

// passThrough reports whether an authoritative error is a data condition the
// caller must see as is.
func passThrough(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindConflict, domain.KindValidation:
		return true
	}
	return false
}
