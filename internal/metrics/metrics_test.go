package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/circuitbreaker"
)

func newRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestRecorder_ReplicaReads(t *testing.T) {
	r, _ := newRecorder(t)

	r.ReplicaRead("find_by_id", accounts.OutcomeHit)
	r.ReplicaRead("find_by_id", accounts.OutcomeHit)
	r.ReplicaRead("find_by_id", accounts.OutcomeMiss)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.replicaReads.WithLabelValues("find_by_id", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.replicaReads.WithLabelValues("find_by_id", "miss")))
}

func TestRecorder_ReplicaWritesAndAttempts(t *testing.T) {
	r, reg := newRecorder(t)

	r.ReplicaWrite("create", accounts.OutcomeOK, 1)
	r.ReplicaWrite("create", accounts.OutcomeFailed, 2)
	r.ReplicaWrite("create", accounts.OutcomeSkipped, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.replicaWrites.WithLabelValues("create", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.replicaWrites.WithLabelValues("create", "skipped")))

	// skipped writes made no attempt and are not observed
	n, err := testutil.GatherAndCount(reg, "account_replica_write_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_RepairsAndFailures(t *testing.T) {
	r, _ := newRecorder(t)

	r.Repair(accounts.OutcomeOK)
	r.Repair(accounts.OutcomeFailed)
	r.AuthoritativeFailure("create")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.authFailures.WithLabelValues("create")))
}

func TestRecorder_BreakerState(t *testing.T) {
	r, _ := newRecorder(t)

	r.BreakerStateChange("replica", circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakerState.WithLabelValues("replica")))

	r.BreakerStateChange("replica", circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.breakerState.WithLabelValues("replica")))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandler(t *testing.T) {
	r, reg := newRecorder(t)
	r.ReplicaRead("find_by_email", accounts.OutcomeError)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `account_replica_reads_total{op="find_by_email",outcome="error"} 1`), body)
}
