package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "costbook"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBusy    = "busy"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	budgetSaves   *prometheus.CounterVec
	saveDuration  *prometheus.HistogramVec
	imageUploads  *prometheus.CounterVec
	pdfRenders    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		budgetSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_saves_total",
			Help:      "Budget save attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "budget_save_duration_seconds",
			Help:      "Time spent saving a budget, uploads included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Budget image uploads by outcome.",
		}, []string{"outcome"}),
		pdfRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_renders_total",
			Help:      "Budget PDF renders by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.budgetSaves, m.saveDuration, m.imageUploads, m.pdfRenders, m.httpRequests, m.httpDurations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordBudgetSave counts one save; mode is create or update.
func (m *Metrics) RecordBudgetSave(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.budgetSaves.WithLabelValues(mode, outcome).Inc()
	m.saveDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordImageUpload(outcome string) {
	if m == nil {
		return
	}
	m.imageUploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPDFRender(outcome string) {
	if m == nil {
		return
	}
	m.pdfRenders.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := strings.TrimSpace(c.FullPath())
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDurations.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
