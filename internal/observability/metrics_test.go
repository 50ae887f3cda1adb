package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/grading"
)

func TestObserveCascadeCountsOutcomeAndSkips(t *testing.T) {
	m := NewMetrics()
	start := time.Now()

	m.ObserveCascade(&grading.CascadeReport{
		Trigger:    grading.TriggerTechniqueWeightChanged,
		CourseID:   uuid.New(),
		Tuples:     3,
		StartedAt:  start,
		FinishedAt: start.Add(20 * time.Millisecond),
	})
	m.ObserveCascade(&grading.CascadeReport{
		Trigger: grading.TriggerTechniqueWeightChanged,
		Tuples:  2,
		Skipped: []grading.StaleComputeSkipped{
			{Phase: grading.PhaseCpmk, Err: context.DeadlineExceeded},
			{Phase: grading.PhaseCpl, Err: errors.New("db down")},
		},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})

	trigger := string(grading.TriggerTechniqueWeightChanged)
	require.Equal(t, 1.0, testutil.ToFloat64(m.cascadeTotal.WithLabelValues(trigger, "complete")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cascadeTotal.WithLabelValues(trigger, "partial")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cascadeSkipped.WithLabelValues(grading.PhaseCpmk, "deadline")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cascadeSkipped.WithLabelValues(grading.PhaseCpl, "error")))
}

func TestObserveComputeStatus(t *testing.T) {
	m := NewMetrics()
	m.ObserveCompute(grading.PhaseCpmk, time.Millisecond, nil)
	m.ObserveCompute(grading.PhaseCpmk, time.Millisecond, grading.ErrSnapshotSuperseded)
	m.ObserveCompute(grading.PhaseCpl, time.Millisecond, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.computeTotal.WithLabelValues(grading.PhaseCpmk, "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.computeTotal.WithLabelValues(grading.PhaseCpmk, "superseded")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.computeTotal.WithLabelValues(grading.PhaseCpl, "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/api/jobs/:id", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "obe_api_requests_total"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveAPI("GET", "/", "200", time.Millisecond)
		m.ObserveCompute(grading.PhaseCpl, time.Millisecond, nil)
		m.ObserveCascade(&grading.CascadeReport{})
		m.APIInflightInc()
		m.ObserveJob("grading_cascade", "succeeded", time.Second)
	})
}

func TestParseHeaders(t *testing.T) {
	require.Nil(t, ParseHeaders(""))
	require.Nil(t, ParseHeaders("junk, =x"))
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, ParseHeaders("a=1, b=2,c"))
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown := InitTracing(context.Background(), nil, TracingConfig{})
	require.NoError(t, shutdown(context.Background()))
}
