package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/metrics"
)

/*
========================
 fakes
========================
*/

type fakeServer struct {
	addr string

	listenErr   error
	shutdownErr error
	closeErr    error

	listenCalled   bool
	shutdownCalled bool
	closeCalled    bool
}

func (f *fakeServer) ListenAndServe() error {
	f.listenCalled = true
	return f.listenErr
}
func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdownCalled = true
	return f.shutdownErr
}
func (f *fakeServer) Close() error {
	f.closeCalled = true
	return f.closeErr
}
func (f *fakeServer) Addr() string { return f.addr }

type harness struct {
	auth, replica *memory.UserStore
	migrated      bool
	closed        bool
	stdout        bytes.Buffer
	stderr        bytes.Buffer
}

func newHarness() *harness {
	return &harness{auth: memory.NewUserStore(), replica: memory.NewUserStore()}
}

func (h *harness) build(ctx context.Context) (*services, error) {
	hasher := security.NewBcryptHasher(4)
	acc := accounts.NewService(h.auth, h.replica, accounts.WithHasher(hasher))
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return &services{
		auth:     auth.NewService(acc, hasher, security.NewJWTSigner("test-secret", "test"), auth.Config{}),
		accounts: acc,
		migrate: func(context.Context) error {
			h.migrated = true
			return nil
		},
		seed:        func(context.Context) (int, error) { return 3, nil },
		metrics:     metrics.Handler(reg),
		metricsAddr: "127.0.0.1:0",
		close: func() {
			acc.Wait()
			h.closed = true
		},
	}, nil
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	return Run(context.Background(), args, h.build, &h.stdout, &h.stderr, nil)
}

func (h *harness) register(t *testing.T, email string) loginView {
	t.Helper()
	code := h.run("register", "-email", email, "-password", "Sup3rSecret", "-name", "Alice")
	require.Equal(t, 0, code, h.stderr.String())

	var v loginView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &v))
	return v
}

/*
========================
 dispatch
========================
*/

func TestRun_NoArgs_PrintsUsage(t *testing.T) {
	h := newHarness()
	assert.Equal(t, 2, h.run())
	assert.Contains(t, h.stderr.String(), "usage: accountctl")
}

func TestRun_UnknownCommand(t *testing.T) {
	h := newHarness()
	assert.Equal(t, 2, h.run("explode"))
	assert.Contains(t, h.stderr.String(), `unknown command "explode"`)
}

func TestRun_BadFlags_DoesNotBootstrap(t *testing.T) {
	built := false
	code := Run(context.Background(), []string{"login", "-nope"}, func(context.Context) (*services, error) {
		built = true
		return nil, nil
	}, &bytes.Buffer{}, &bytes.Buffer{}, nil)

	assert.Equal(t, 2, code)
	assert.False(t, built)
}

func TestRun_BootstrapFail_Returns1(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"migrate"}, func(context.Context) (*services, error) {
		return nil, errors.New("boom")
	}, &bytes.Buffer{}, &stderr, nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "bootstrap failed")
}

/*
========================
 commands
========================
*/

func TestMigrateAndSeed(t *testing.T) {
	h := newHarness()

	require.Equal(t, 0, h.run("migrate"))
	assert.True(t, h.migrated)
	assert.True(t, h.closed)

	require.Equal(t, 0, h.run("seed"))
	assert.Contains(t, h.stdout.String(), "seeded 3 accounts")
}

func TestRegisterLoginVerify(t *testing.T) {
	h := newHarness()
	reg := h.register(t, "alice@example.com")

	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "STUDENT", reg.User.Role)
	assert.NotEmpty(t, reg.Tokens.AccessToken)
	assert.Equal(t, 1, h.replica.Len())

	require.Equal(t, 0, h.run("login", "-email", "ALICE@example.com", "-password", "Sup3rSecret"), h.stderr.String())
	var login loginView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &login))
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotContains(t, h.stdout.String(), "password")

	require.Equal(t, 0, h.run("verify", "-token", login.Tokens.AccessToken), h.stderr.String())
	var u userView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &u))
	assert.Equal(t, reg.User.ID, u.ID)
}

func TestLogin_WrongPassword_PrintsCode(t *testing.T) {
	h := newHarness()
	h.register(t, "alice@example.com")

	assert.Equal(t, 1, h.run("login", "-email", "alice@example.com", "-password", "Wrong1234"))
	assert.Contains(t, h.stderr.String(), "error: invalid_credentials")
}

func TestRegister_ValidationError_PrintsField(t *testing.T) {
	h := newHarness()

	assert.Equal(t, 1, h.run("register", "-email", "bad", "-password", "Sup3rSecret", "-name", "A"))
	assert.Contains(t, h.stderr.String(), "error: invalid_field")
	assert.Contains(t, h.stderr.String(), `field="email"`)
}

func TestOAuthLogin(t *testing.T) {
	h := newHarness()

	require.Equal(t, 0, h.run("oauth-login", "-provider", "github", "-provider-id", "gh-1", "-email", "dev@example.com"), h.stderr.String())
	var v loginView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &v))
	require.NotNil(t, v.IsNewUser)
	assert.True(t, *v.IsNewUser)
	assert.Equal(t, "GITHUB", v.User.AuthProvider)
}

func TestFind(t *testing.T) {
	h := newHarness()
	reg := h.register(t, "alice@example.com")

	require.Equal(t, 0, h.run("find", "-id", reg.User.ID), h.stderr.String())
	assert.Contains(t, h.stdout.String(), reg.User.ID)

	require.Equal(t, 0, h.run("find", "-email", "alice@example.com"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), reg.User.ID)

	assert.Equal(t, 1, h.run("find", "-id", "missing"))
	assert.Contains(t, h.stderr.String(), "error: user_not_found")

	assert.Equal(t, 2, h.run("find"))
	assert.Equal(t, 2, h.run("find", "-id", "a", "-email", "b"))
}

func TestSetStatus(t *testing.T) {
	h := newHarness()
	reg := h.register(t, "alice@example.com")

	assert.Equal(t, 1, h.run("set-status", "-actor-id", "x", "-actor-role", "MENTOR", "-id", reg.User.ID, "-active=false"))
	assert.Contains(t, h.stderr.String(), "insufficient_role")

	require.Equal(t, 0, h.run("set-status", "-actor-id", "x", "-actor-role", "ADMIN", "-id", reg.User.ID, "-active=false"), h.stderr.String())
	var u userView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &u))
	assert.False(t, u.IsActive)

	stored, err := h.auth.FindByID(context.Background(), reg.User.ID)
	assert.True(t, domain.Is(err, domain.CodeUserNotFound), "disabled accounts are not found: %v %+v", err, stored)
}

func TestUpdateProfile_OnlyGivenFlags(t *testing.T) {
	h := newHarness()
	reg := h.register(t, "alice@example.com")

	require.Equal(t, 0, h.run("update-profile", "-id", reg.User.ID, "-avatar", "https://cdn.example.com/a.png"), h.stderr.String())
	var u userView
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &u))
	assert.Equal(t, "Alice", u.FullName)
	require.NotNil(t, u.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/a.png", *u.AvatarURL)

	assert.Equal(t, 1, h.run("update-profile", "-id", reg.User.ID))
	assert.Contains(t, h.stderr.String(), "missing_field")
}

func TestPrintError_PlainError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("dial tcp: refused"))
	assert.Equal(t, "error: dial tcp: refused\n", buf.String())
}

/*
========================
 serve-metrics
========================
*/

func TestServeMetrics_SignalTriggersGracefulShutdown(t *testing.T) {
	srv := &fakeServer{addr: ":0", listenErr: http.ErrServerClosed}
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM

	err := serveMetrics(srv, sigCh, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, srv.shutdownCalled)
	assert.False(t, srv.closeCalled)
}

func TestServeMetrics_ServerCrash(t *testing.T) {
	srv := &fakeServer{addr: ":0", listenErr: errors.New("address in use")}

	err := serveMetrics(srv, make(chan os.Signal), &bytes.Buffer{})
	assert.ErrorContains(t, err, "crashed")
}

func TestServeMetrics_ShutdownFailure_ForcesClose(t *testing.T) {
	srv := &fakeServer{addr: ":0", listenErr: http.ErrServerClosed, shutdownErr: errors.New("timeout")}
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGINT

	err := serveMetrics(srv, sigCh, &bytes.Buffer{})
	assert.Error(t, err)
	assert.True(t, srv.closeCalled)
}

func TestRun_ServeMetrics(t *testing.T) {
	h := newHarness()
	sigCh := make(chan os.Signal, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		sigCh <- syscall.SIGTERM
	}()

	code := Run(context.Background(), []string{"serve-metrics", "-addr", "127.0.0.1:0"}, h.build, &h.stdout, &h.stderr, sigCh)
	assert.Equal(t, 0, code, h.stderr.String())
	assert.True(t, strings.Contains(h.stderr.String(), "serving metrics on 127.0.0.1:0"))
}
