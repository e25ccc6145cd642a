package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parallelproof_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_tasks_total",
		Help: "Tasks that reached a terminal state",
	}, []string{"status"})

	TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parallelproof_tasks_active",
		Help: "Tasks currently running",
	})

	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parallelproof_task_duration_seconds",
		Help:    "Wall time from running to terminal state",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	AgentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_agents_total",
		Help: "Agent runs by strategy and outcome",
	}, []string{"strategy", "status"})

	AgentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parallelproof_agent_duration_seconds",
		Help:    "Agent run duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 180},
	}, []string{"strategy"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_llm_requests_total",
		Help: "Total generation requests",
	}, []string{"status"})

	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parallelproof_llm_request_duration_seconds",
		Help:    "Generation request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	RetrievalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_retrieval_total",
		Help: "Pattern searches by the path that produced the result",
	}, []string{"path"})

	ForksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parallelproof_forks_total",
		Help: "Environment provision and release attempts",
	}, []string{"mode", "op", "outcome"})

	ForksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parallelproof_forks_active",
		Help: "Environments currently held",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parallelproof_subscribers",
		Help: "Open push-channel subscriptions",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parallelproof_events_dropped_total",
		Help: "Events not delivered because a subscriber was gone or too slow",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "parallelproof_circuit_breaker_state",
		Help: "0 closed, 1 open, 2 half-open",
	}, []string{"upstream"})
)
