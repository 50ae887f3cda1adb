package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	computeTotal   *prometheus.CounterVec
	computeLatency *prometheus.HistogramVec
	cascadeTotal   *prometheus.CounterVec
	cascadeLatency *prometheus.HistogramVec
	cascadeTuples  *prometheus.HistogramVec
	cascadeSkipped *prometheus.CounterVec
	jobTotal       *prometheus.CounterVec
	jobLatency     *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

var _ grading.Recorder = (*Metrics)(nil)

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obe_api_requests_total",
				Help: "Total API requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		apiLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "obe_api_request_duration_seconds",
				Help:    "API request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route", "status"},
		),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "obe_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		computeTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obe_score_computes_total",
				Help: "Score computations by phase and status.",
			},
			[]string{"phase", "status"},
		),
		computeLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "obe_score_compute_duration_seconds",
				Help:    "Duration of a single CPMK or CPL score computation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		cascadeTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obe_cascades_total",
				Help: "Recalculation cascades by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		cascadeLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "obe_cascade_duration_seconds",
				Help:    "Wall time of a recalculation cascade.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"trigger"},
		),
		cascadeTuples: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "obe_cascade_tuples",
				Help:    "Student periods visited per cascade.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"trigger"},
		),
		cascadeSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obe_cascade_skipped_total",
				Help: "Computes skipped inside cascades, by phase.",
			},
			[]string{"phase", "reason"},
		),
		jobTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obe_jobs_total",
				Help: "Finished background jobs by type and status.",
			},
			[]string{"job_type", "status"},
		),
		jobLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "obe_job_duration_seconds",
				Help:    "Background job run time.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"job_type"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "obe_job_queue_depth",
				Help: "Rows in job_run by status.",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveCompute(phase string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.computeTotal.WithLabelValues(phase, statusOf(err)).Inc()
	m.computeLatency.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) ObserveCascade(report *grading.CascadeReport) {
	if m == nil || report == nil {
		return
	}
	trigger := string(report.Trigger)
	outcome := "complete"
	if !report.Complete() {
		outcome = "partial"
	}
	m.cascadeTotal.WithLabelValues(trigger, outcome).Inc()
	m.cascadeLatency.WithLabelValues(trigger).Observe(report.Duration().Seconds())
	m.cascadeTuples.WithLabelValues(trigger).Observe(float64(report.Tuples))
	for _, s := range report.Skipped {
		m.cascadeSkipped.WithLabelValues(s.Phase, skipReason(s.Err)).Inc()
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobTotal.WithLabelValues(jobType, status).Inc()
	m.jobLatency.WithLabelValues(jobType).Observe(dur.Seconds())
}

// StartJobQueueCollector samples job_run counts by status every interval.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	statuses := []string{jobs.StatusQueued, jobs.StatusRunning, jobs.StatusSucceeded, jobs.StatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.sampleQueue(ctx, db, statuses); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) sampleQueue(ctx context.Context, db *gorm.DB, statuses []string) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range statuses {
		m.queueDepth.WithLabelValues(s).Set(0)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.WithLabelValues(status).Set(float64(row.Count))
	}
	return nil
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, grading.ErrSnapshotSuperseded) {
		return "superseded"
	}
	return "error"
}

func skipReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, grading.ErrSnapshotSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
