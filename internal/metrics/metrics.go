package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational counters for the billing lifecycle engine. Exposition is
// left to the hosting process; everything here registers on the default
// registry.
var (
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_job_runs_total",
			Help: "Scheduled or manual job executions by outcome",
		},
		[]string{"job", "outcome"},
	)

	ContractsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_contracts_updated_total",
			Help: "Contract status writes performed by reconciliation",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_notifications_sent_total",
			Help: "Billing notices delivered by kind",
		},
		[]string{"kind"},
	)

	ChargeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_charge_attempts_total",
			Help: "Automatic renewal charge attempts by outcome",
		},
		[]string{"outcome"},
	)

	EntityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_entity_failures_total",
			Help: "Per-contract failures isolated during batch passes",
		},
		[]string{"job"},
	)

	DBRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_db_retry_attempts_total",
			Help: "Failed database attempts that triggered a retry",
		},
	)

	PoolHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billing_db_pool_healthy",
			Help: "1 when the last liveness probe succeeded, 0 otherwise",
		},
	)

	GatewayBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "billing_gateway_breaker_state",
			Help: "Payment gateway circuit state: 0 closed, 1 open, 2 half-open",
		},
	)
)
