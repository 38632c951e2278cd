package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/circuitbreaker"
)

// Recorder exports replica behaviour of the account service.
type Recorder struct {
	replicaReads  *prometheus.CounterVec
	replicaWrites *prometheus.CounterVec
	writeAttempts *prometheus.HistogramVec
	repairs       *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

var _ accounts.Recorder = (*Recorder)(nil)

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Replica read metrics
		replicaReads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_replica_reads_total",
				Help: "Replica lookups by outcome (hit, miss, error)",
			},
			[]string{"op", "outcome"},
		),

		// Replica write metrics
		replicaWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_replica_writes_total",
				Help: "Replica writes after an authoritative create, by outcome",
			},
			[]string{"op", "outcome"},
		),
		writeAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "account_replica_write_attempts",
				Help:    "Attempts spent per replica write",
				Buckets: []float64{1, 2, 3, 5},
			},
			[]string{"op"},
		),

		// Read-repair metrics
		repairs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_read_repairs_total",
				Help: "Background replica repairs by outcome",
			},
			[]string{"outcome"},
		),

		authFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_authoritative_failures_total",
				Help: "Authoritative store failures surfaced to callers",
			},
			[]string{"op"},
		),

		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "account_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"breaker"},
		),
	}
}

func (r *Recorder) ReplicaRead(op string, outcome accounts.Outcome) {
	r.replicaReads.WithLabelValues(op, string(outcome)).Inc()
}

func (r *Recorder) ReplicaWrite(op string, outcome accounts.Outcome, attempts int) {
	r.replicaWrites.WithLabelValues(op, string(outcome)).Inc()
	if attempts > 0 {
		r.writeAttempts.WithLabelValues(op).Observe(float64(attempts))
	}
}

func (r *Recorder) Repair(outcome accounts.Outcome) {
	r.repairs.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) AuthoritativeFailure(op string) {
	r.authFailures.WithLabelValues(op).Inc()
}

// BreakerStateChange matches circuitbreaker.Settings.OnStateChange.
func (r *Recorder) BreakerStateChange(name string, _, to circuitbreaker.State) {
	r.breakerState.WithLabelValues(name).Set(float64(to))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
