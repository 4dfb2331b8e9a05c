package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncTaskResult("styles", ResultSuccess)
	rec.IncTaskResult("styles", ResultSuccess)
	rec.IncTaskResult("images", ResultFailed)
	rec.ObserveTaskDuration("styles", 20*time.Millisecond)
	rec.IncPlanOutcome("build", true)
	rec.IncWatchDispatch("html")
	rec.IncReload("css")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.taskResults.WithLabelValues("styles", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.taskResults.WithLabelValues("images", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.planOutcome.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.dispatches.WithLabelValues("html")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.reloads.WithLabelValues("css")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	assert.NotPanics(t, func() {
		rec.IncTaskResult("x", ResultSuccess)
		rec.ObserveTaskDuration("x", time.Second)
		rec.IncPlanOutcome("x", false)
		rec.IncWatchDispatch("x")
		rec.IncReload("reload")
	})
}

func TestOr(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, Or(nil))
	rec := NewPrometheusRecorder(nil)
	assert.Same(t, rec, Or(rec))
}
