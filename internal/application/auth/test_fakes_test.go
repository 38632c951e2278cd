package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditLog) record(action string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *auditLog) last(t *testing.T) auditEntry {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		t.Fatalf("expected an audit entry")
	}
	return a.entries[len(a.entries)-1]
}

/*
Fakes for ports
*/

// fakeHasher "hashes" by prefixing.
type fakeHasher struct{}

func (fakeHasher) Hash(pw string) (string, error) { return "hash:" + pw, nil }

func (fakeHasher) Compare(hash, pw string) error {
	if hash != "hash:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

// fakeSigner format: "stub.<userID>.<role>.<expUnix>"
type fakeSigner struct {
	signErr error
}

func (s fakeSigner) SignAccessToken(userID string, role string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	exp := time.Now().Add(ttl).Unix()
	return "stub." + userID + "." + role + "." + strconv.FormatInt(exp, 10), nil
}

func (fakeSigner) VerifyAccessToken(token string) (TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != "stub" {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	expUnix, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	exp := time.Unix(expUnix, 0)
	if time.Now().After(exp) {
		return TokenClaims{}, domain.ErrTokenExpired()
	}
	return TokenClaims{UserID: parts[1], Role: parts[2], Exp: exp}, nil
}

// failingAccounts returns err from every call.
type failingAccounts struct{ err error }

func (f failingAccounts) Create(context.Context, accounts.NewUser) (domain.User, error) {
	return domain.User{}, f.err
}
func (f failingAccounts) FindByID(context.Context, string) (domain.User, error) {
	return domain.User{}, f.err
}
func (f failingAccounts) FindByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, f.err
}
func (f failingAccounts) SetActive(context.Context, string, bool) (domain.User, error) {
	return domain.User{}, f.err
}
func (f failingAccounts) UpdateProfile(context.Context, string, *string, *string) (domain.User, error) {
	return domain.User{}, f.err
}

type testEnv struct {
	svc     *Service
	accts   *accounts.Service
	auth    *memory.UserStore
	replica *memory.UserStore
	audit   *auditLog
}

// newTestEnv wires the auth flows over a real replicated service with two
// in-memory stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:    memory.NewUserStore(),
		replica: memory.NewUserStore(),
		audit:   &auditLog{},
	}
	env.accts = accounts.NewService(env.auth, env.replica, accounts.WithHasher(fakeHasher{}))
	env.svc = NewService(env.accts, fakeHasher{}, fakeSigner{}, Config{AccessTTL: time.Minute}).
		WithAudit(env.audit.record)
	t.Cleanup(env.accts.Wait)
	return env
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

func validRegister() RegisterInput {
	return RegisterInput{Email: "Alice@Example.com", Password: "Sup3rSecret", FullName: "Alice"}
}
