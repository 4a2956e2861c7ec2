// Package metrics provides Prometheus metrics for detailing imports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomePartial   = "partial"
	OutcomeConflict  = "conflict"
	OutcomeFailed    = "failed"
)

var (
	// Import metrics
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precast_imports_total",
			Help: "Total number of committed detailing imports by outcome",
		},
		[]string{"policy", "outcome"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "precast_import_duration_seconds",
			Help:    "Time taken to parse, reconcile and write a detailing batch",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"policy"},
	)

	// Piece metrics
	PieceGroupsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precast_piece_groups_written_total",
			Help: "Total number of piece groups written",
		},
		[]string{"policy"},
	)

	PieceStatusesSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precast_piece_statuses_synced_total",
			Help: "Total number of per-instance status rows created or refreshed",
		},
		[]string{"action"},
	)

	// Parse metrics
	ParseWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precast_parse_warnings_total",
			Help: "Total number of warnings raised while normalizing detailing files",
		},
		[]string{"kind"},
	)
)

// ImportMetrics records metrics for a single import under one write policy.
type ImportMetrics struct {
	policy string
	start  time.Time
}

// NewImportMetrics starts timing an import.
func NewImportMetrics(policy string) *ImportMetrics {
	return &ImportMetrics{policy: policy, start: time.Now()}
}

// RecordOutcome records the end of the import.
func (m *ImportMetrics) RecordOutcome(outcome string) {
	ImportsTotal.WithLabelValues(m.policy, outcome).Inc()
	ImportDuration.WithLabelValues(m.policy).Observe(time.Since(m.start).Seconds())
}

// RecordGroups records written piece groups.
func (m *ImportMetrics) RecordGroups(n int) {
	PieceGroupsWritten.WithLabelValues(m.policy).Add(float64(n))
}

// RecordStatusSync records created and refreshed status rows.
func RecordStatusSync(created, refreshed int) {
	PieceStatusesSynced.WithLabelValues("created").Add(float64(created))
	PieceStatusesSynced.WithLabelValues("refreshed").Add(float64(refreshed))
}

// RecordWarning records a normalizer warning of the given kind.
func RecordWarning(kind string) {
	ParseWarnings.WithLabelValues(kind).Inc()
}
