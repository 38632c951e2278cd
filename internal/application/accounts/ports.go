package accounts

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

/*
Store
-----
Capability implemented independently by the authoritative store and the
local replica store.

  - Finds return active records only and domain.ErrUserNotFound otherwise.
  - Insert reports a duplicate id/email as domain.ErrEmailAlreadyExists.
  - Update targets the record by id whether or not it is active.
  - Store conditions are reported with typed codes (store_isolated,
    schema_missing, store_unavailable) so Classify never inspects text.

Implementations must be safe for concurrent use.
*/
type Store interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Insert(ctx context.Context, u domain.User) (domain.User, error)
	Upsert(ctx context.Context, key UpsertKey, u domain.User) error
	Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error)
}

// UpsertKey selects the unique column an upsert resolves conflicts on.
type UpsertKey int

const (
	KeyID UpsertKey = iota
	KeyEmail
)

func (k UpsertKey) String() string {
	switch k {
	case KeyID:
		return "id"
	case KeyEmail:
		return "email"
	default:
		return "unknown"
	}
}

/*
PasswordHasher
--------------
Produces password_hash before the authoritative write.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
}

/*
Recorder
--------
Observes replica behaviour. Implemented by the metrics package.
*/
type Recorder interface {
	ReplicaRead(op string, outcome Outcome)
	ReplicaWrite(op string, outcome Outcome, attempts int)
	Repair(outcome Outcome)
	AuthoritativeFailure(op string)
}

type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
	OutcomeError   Outcome = "error"
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

/*
SyncFailureSink
---------------
Told about replica writes that failed unexpectedly and were given up on, so an
out-of-band worker can re-sync the record later.
*/
type SyncFailureSink interface {
	ReplicaSyncAbandoned(ctx context.Context, f SyncFailure) error
}

type SyncFailure struct {
	UserID   string
	Email    string
	Op       string
	Attempts int
	Reason   string
	At       time.Time
}

// NewUser is the input of Create. Password is hashed; it is never stored as given.
type NewUser struct {
	Email          string
	FullName       string
	Password       string
	Role           domain.Role
	AuthProvider   domain.AuthProvider
	AuthProviderID *string
	AvatarURL      *string
}

type nopRecorder struct{}

func (nopRecorder) ReplicaRead(string, Outcome)       {}
func (nopRecorder) ReplicaWrite(string, Outcome, int) {}
func (nopRecorder) Repair(Outcome)                    {}
func (nopRecorder) AuthoritativeFailure(string)       {}
