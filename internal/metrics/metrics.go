package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics (C6)

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobcore",
		Name:      "queue_depth",
		Help:      "Number of Executions currently buffered in the Queue.",
	})

	QueueOverflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "queue_overflow_total",
		Help:      "Total Push calls that were cancelled while the Queue was full.",
	})

	// Scheduler metrics (C5)

	SchedulerFiresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "scheduler_fires_total",
		Help:      "Total Schedules fired by the leader's tick loop.",
	})

	SchedulerLeaseAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "scheduler_lease_acquisitions_total",
		Help:      "Total times an Execution Server became the Scheduler leader.",
	})

	// Execution metrics (C7/C8)

	ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "execution_duration_seconds",
		Help:      "Duration from STARTED to a terminal state, by outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	ExecutionsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "executions_completed_total",
		Help:      "Total Executions reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	// Recovery metrics (stale reclamation, §4.7)

	ReclaimedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "reclaimed_total",
		Help:      "Total stale entities reclaimed by the recovery loop.",
	}, []string{"entity"})

	HeartbeatAge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobcore",
		Name:      "heartbeat_age_seconds",
		Help:      "Seconds since this entity's last heartbeat refresh.",
	}, []string{"entity"})

	// HTTP metrics (B2)

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		QueueDepth,
		QueueOverflowTotal,
		SchedulerFiresTotal,
		SchedulerLeaseAcquisitionsTotal,
		ExecutionDuration,
		ExecutionsCompletedTotal,
		ReclaimedTotal,
		HeartbeatAge,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
