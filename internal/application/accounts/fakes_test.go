package accounts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

/*
fakeStore is an in-memory Store with call counters and scripted errors.
An error queued for a method is returned (and consumed) before the map is consulted;
a sticky error is returned on every call.
*/
type fakeStore struct {
	mu sync.Mutex

	name    string
	byID    map[string]domain.User
	byEmail map[string]string

	queued map[string][]error
	sticky map[string]error
	calls  map[string]int

	upsertKeys []UpsertKey
}

func newFakeStore(name string) *fakeStore {
	return &fakeStore{
		name:    name,
		byID:    map[string]domain.User{},
		byEmail: map[string]string{},
		queued:  map[string][]error{},
		sticky:  map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeStore) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[method] = append(f.queued[method], errs...)
}

func (f *fakeStore) failAlways(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sticky[method] = err
}

func (f *fakeStore) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeStore) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
}

func (f *fakeStore) get(id string) (domain.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	return u, ok
}

// enter records a call and returns the scripted error, if any. Caller holds mu.
func (f *fakeStore) enter(method string) error {
	f.calls[method]++
	if q := f.queued[method]; len(q) > 0 {
		f.queued[method] = q[1:]
		return q[0]
	}
	return f.sticky[method]
}

func (f *fakeStore) FindByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindByID"); err != nil {
		return domain.User{}, err
	}
	u, ok := f.byID[id]
	if !ok || !u.IsActive {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindByEmail"); err != nil {
		return domain.User{}, err
	}
	id, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	u := f.byID[id]
	if !u.IsActive {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeStore) Insert(_ context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Insert"); err != nil {
		return domain.User{}, err
	}
	if _, ok := f.byID[u.ID]; ok {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	return u, nil
}

func (f *fakeStore) Upsert(_ context.Context, key UpsertKey, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertKeys = append(f.upsertKeys, key)
	if err := f.enter("Upsert"); err != nil {
		return err
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	return nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Update"); err != nil {
		return domain.User{}, err
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	u = patch.Apply(u)
	f.byID[id] = u
	return u, nil
}

type fakeHasher struct{ err error }

func (h fakeHasher) Hash(pw string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + pw, nil
}

type recordedWrite struct {
	op       string
	outcome  Outcome
	attempts int
}

type fakeRecorder struct {
	mu          sync.Mutex
	reads       []Outcome
	writes      []recordedWrite
	repairs     []Outcome
	authFailure []string
}

func (r *fakeRecorder) ReplicaRead(_ string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, o)
}

func (r *fakeRecorder) ReplicaWrite(op string, o Outcome, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, recordedWrite{op, o, attempts})
}

func (r *fakeRecorder) Repair(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairs = append(r.repairs, o)
}

func (r *fakeRecorder) AuthoritativeFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authFailure = append(r.authFailure, op)
}

type fakeSink struct {
	mu       sync.Mutex
	failures []SyncFailure
	err      error
}

func (s *fakeSink) ReplicaSyncAbandoned(_ context.Context, f SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
	return s.err
}

var (
	errBreakerOpen = domain.ErrStoreIsolated("replica", errors.New("circuit breaker is open"))
	errNoTable     = domain.ErrSchemaMissing("replica", errors.New(`relation "users" does not exist`))
	errReplicaIO   = domain.ErrStoreUnavailable("replica", errors.New("i/o timeout"))
	errAuthDown    = domain.ErrStoreUnavailable("authoritative", errors.New("connection refused"))
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type harness struct {
	auth    *fakeStore
	replica *fakeStore
	rec     *fakeRecorder
	sink    *fakeSink
	svc     *Service
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		auth:    newFakeStore("authoritative"),
		replica: newFakeStore("replica"),
		rec:     &fakeRecorder{},
		sink:    &fakeSink{},
	}
	seq := 0
	base := []Option{
		WithHasher(fakeHasher{}),
		WithRecorder(h.rec),
		WithSyncFailureSink(h.sink),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return "id-" + string(rune('0'+seq))
		}),
	}
	h.svc = NewService(h.auth, h.replica, append(base, opts...)...)
	return h
}

func activeUser(id, email string) domain.User {
	return domain.User{
		ID:           id,
		Email:        email,
		FullName:     "User " + id,
		Role:         domain.RoleStudent,
		AuthProvider: domain.ProviderLocal,
		IsActive:     true,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
}
