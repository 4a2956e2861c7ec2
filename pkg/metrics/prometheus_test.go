package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestImportMetrics_RecordOutcome(t *testing.T) {
	before := testutil.ToFloat64(ImportsTotal.WithLabelValues("append_only", OutcomeConflict))

	m := NewImportMetrics("append_only")
	m.RecordOutcome(OutcomeConflict)

	after := testutil.ToFloat64(ImportsTotal.WithLabelValues("append_only", OutcomeConflict))
	assert.Equal(t, before+1, after)
}

func TestImportMetrics_RecordGroups(t *testing.T) {
	before := testutil.ToFloat64(PieceGroupsWritten.WithLabelValues("replace_all"))

	NewImportMetrics("replace_all").RecordGroups(3)

	assert.Equal(t, before+3, testutil.ToFloat64(PieceGroupsWritten.WithLabelValues("replace_all")))
}

func TestRecordStatusSync(t *testing.T) {
	created := testutil.ToFloat64(PieceStatusesSynced.WithLabelValues("created"))
	refreshed := testutil.ToFloat64(PieceStatusesSynced.WithLabelValues("refreshed"))

	RecordStatusSync(2, 5)

	assert.Equal(t, created+2, testutil.ToFloat64(PieceStatusesSynced.WithLabelValues("created")))
	assert.Equal(t, refreshed+5, testutil.ToFloat64(PieceStatusesSynced.WithLabelValues("refreshed")))
}

func TestRecordWarning(t *testing.T) {
	before := testutil.ToFloat64(ParseWarnings.WithLabelValues("field_coercion"))
	RecordWarning("field_coercion")
	assert.Equal(t, before+1, testutil.ToFloat64(ParseWarnings.WithLabelValues("field_coercion")))
}
