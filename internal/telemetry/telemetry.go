package telemetry

import (
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"actorscout/config"
)

// Telemetry provides monitoring and cost tracking for discovery runs.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	llmTokens   *prometheus.CounterVec

	mu         sync.Mutex
	totalCost  float64
	modelCosts map[string]float64
}

// NewTelemetry creates a new telemetry instance with its own registry.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: reg,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorscout_evaluations_total",
			Help: "Candidate evaluations by result.",
		}, []string{"result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorscout_execution_attempts_total",
			Help: "Execution attempts by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorscout_candidate_runs_total",
			Help: "Completed candidate control loops by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actorscout_run_duration_seconds",
			Help:    "Wall-clock duration of successful actor runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorscout_llm_tokens_total",
			Help: "LLM tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
		modelCosts: make(map[string]float64),
	}
	reg.MustRegister(t.evaluations, t.attempts, t.runs, t.runDuration, t.llmTokens)
	return t
}

// Handler exposes the telemetry registry for the /metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation records one candidate evaluation.
func (t *Telemetry) RecordEvaluation(candidateID string, success bool) {
	if !t.config.Enabled {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	t.evaluations.WithLabelValues(result).Inc()
}

// RecordAttempt records a single synthesize+invoke attempt outcome.
func (t *Telemetry) RecordAttempt(candidateID, outcome string) {
	if !t.config.Enabled {
		return
	}
	t.attempts.WithLabelValues(outcome).Inc()
}

// RecordRun records a completed per-candidate control loop.
func (t *Telemetry) RecordRun(candidateID string, succeeded bool, durationSeconds float64) {
	if !t.config.Enabled {
		return
	}
	result := "succeeded"
	if !succeeded {
		result = "failed"
	}
	t.runs.WithLabelValues(result).Inc()
	if succeeded && durationSeconds > 0 {
		t.runDuration.Observe(durationSeconds)
	}
}

// RecordLLMUsage records token usage and accumulated cost for one model call.
func (t *Telemetry) RecordLLMUsage(model string, promptTokens, completionTokens int64, cost float64) {
	if !t.config.Enabled {
		return
	}
	t.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	t.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))

	if !t.config.CostTracking {
		return
	}
	t.mu.Lock()
	t.totalCost += cost
	t.modelCosts[model] += cost
	t.mu.Unlock()
}

// TotalCost returns the accumulated LLM cost for this process.
func (t *Telemetry) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}
