package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the engine's Prometheus collectors
type Registry struct {
	reg *prometheus.Registry

	RunsTotal          prometheus.Counter
	RunsFailed         prometheus.Counter
	RunDurationSec     prometheus.Histogram
	CandidatesSeen     prometheus.Counter
	CandidatesFiltered prometheus.Counter
	CandidatesBlocked  prometheus.Counter
	RiskFailures       prometheus.Counter
	MatchesCreated     prometheus.Counter
	MatchesDeduped     prometheus.Counter
	FallbackSignals    prometheus.Counter
	FallbackRetries    prometheus.Counter
}

// NewRegistry creates and registers all collectors
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	runs := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_runs_total"})
	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_runs_failed_total"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	seen := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_candidates_seen_total"})
	filtered := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_candidates_filtered_total"})
	blocked := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_candidates_blocked_total"})
	riskFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_risk_failures_total"})
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_matches_created_total"})
	deduped := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_matches_deduped_total"})
	fallbackSignals := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_fallback_signals_total"})
	fallbackRetries := prometheus.NewCounter(prometheus.CounterOpts{Name: "matching_fallback_retries_total"})

	r.MustRegister(runs, runsFailed, runDuration, seen, filtered, blocked,
		riskFailures, created, deduped, fallbackSignals, fallbackRetries)

	return &Registry{
		reg:                r,
		RunsTotal:          runs,
		RunsFailed:         runsFailed,
		RunDurationSec:     runDuration,
		CandidatesSeen:     seen,
		CandidatesFiltered: filtered,
		CandidatesBlocked:  blocked,
		RiskFailures:       riskFailures,
		MatchesCreated:     created,
		MatchesDeduped:     deduped,
		FallbackSignals:    fallbackSignals,
		FallbackRetries:    fallbackRetries,
	}
}

// Handler exposes the registry for scraping
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
