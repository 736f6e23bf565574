// Package metrics defines the Prometheus collectors for moodarc.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage fallback kinds.
const (
	FallbackWidened      = "widened"
	FallbackWholeCatalog = "whole_catalog"
	FallbackTopUp        = "top_up"
)

var (
	// Selection metrics
	SelectionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodarc_selection_runs_total",
			Help: "Total number of track selection runs",
		},
	)

	SelectionPicks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodarc_selection_picks",
			Help:    "Tracks selected per run",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60},
		},
	)

	SelectionShort = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodarc_selection_short_total",
			Help: "Selection runs that returned fewer tracks than requested",
		},
	)

	StageFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodarc_stage_fallbacks_total",
			Help: "Stage selections that needed a fallback, by kind",
		},
		[]string{"kind"},
	)

	StageTolerance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodarc_stage_tolerance",
			Help:    "Final candidate tolerance used per stage",
			Buckets: []float64{0.12, 0.16, 0.2, 0.24, 0.28, 0.32},
		},
	)

	// Scoring metrics
	ScorerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodarc_scorer_outcomes_total",
			Help: "Mood scoring results by source (openai, fallback) and reason",
		},
		[]string{"source", "reason"},
	)

	// Spotify metrics
	SpotifySearchMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodarc_spotify_search_misses_total",
			Help: "Selected tracks that could not be found on Spotify",
		},
	)

	PlaylistsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodarc_playlists_created_total",
			Help: "Playlists created on Spotify",
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodarc_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordSelection records one finished selection run.
func RecordSelection(requested, selected int) {
	SelectionRuns.Inc()
	SelectionPicks.Observe(float64(selected))
	if selected < requested {
		SelectionShort.Inc()
	}
}

// RecordStage records the final tolerance of one stage and any fallbacks it used.
func RecordStage(tol float64, fallbacks ...string) {
	StageTolerance.Observe(tol)
	for _, kind := range fallbacks {
		StageFallbacks.WithLabelValues(kind).Inc()
	}
}

// RecordScore records a scoring outcome. reason is empty for successful LLM scoring.
func RecordScore(source, reason string) {
	ScorerOutcomes.WithLabelValues(source, reason).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
