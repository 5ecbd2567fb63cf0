// Package metrics exposes Prometheus counters for the game loop. All methods
// are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	submissions       *prometheus.CounterVec
	reviews           *prometheus.CounterVec
	fraudVerdicts     *prometheus.CounterVec
	fraudSimilarity   prometheus.Histogram
	fraudScan         prometheus.Histogram
	signatureCache    *prometheus.CounterVec
	badges            *prometheus.CounterVec
	points            *prometheus.CounterVec
}

// New creates a Metrics with its own registry, so independent instances
// never collide.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecobingo_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_submissions_total",
			Help: "Task submissions by outcome.",
		}, []string{"outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_reviews_total",
			Help: "Reviewer decisions by result.",
		}, []string{"decision"}),
		fraudVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_fraud_verdicts_total",
			Help: "Duplicate-image checks by verdict.",
		}, []string{"verdict"}),
		fraudSimilarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecobingo_fraud_max_similarity",
			Help:    "Highest similarity found per duplicate-image check.",
			Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 100},
		}),
		fraudScan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecobingo_fraud_scan_duration_seconds",
			Help:    "Time spent comparing a photo against recent submissions.",
			Buckets: prometheus.DefBuckets,
		}),
		signatureCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_signature_cache_total",
			Help: "Signature cache lookups by result.",
		}, []string{"result"}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_badges_awarded_total",
			Help: "Badges granted by pattern.",
		}, []string{"pattern"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecobingo_points_awarded_total",
			Help: "Points credited to the leaderboard by source.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.submissions,
		m.reviews,
		m.fraudVerdicts,
		m.fraudSimilarity,
		m.fraudScan,
		m.signatureCache,
		m.badges,
		m.points,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Submission counts a submit attempt: "pending", "approved" or an error code
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// Review counts an "approved" or "rejected" decision
func (m *Metrics) Review(decision string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(decision).Inc()
}

func (m *Metrics) FraudCheck(fraud bool, similarity float64, took time.Duration) {
	if m == nil {
		return
	}
	verdict := "clean"
	if fraud {
		verdict = "fraud"
	}
	m.fraudVerdicts.WithLabelValues(verdict).Inc()
	m.fraudSimilarity.Observe(similarity)
	m.fraudScan.Observe(took.Seconds())
}

func (m *Metrics) SignatureCacheHit() {
	if m == nil {
		return
	}
	m.signatureCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) SignatureCacheMiss() {
	if m == nil {
		return
	}
	m.signatureCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) BadgeAwarded(pattern string, bonus int) {
	if m == nil {
		return
	}
	m.badges.WithLabelValues(pattern).Inc()
	m.points.WithLabelValues("pattern").Add(float64(bonus))
}

// PointsAwarded records points credited for source "task" or "completion"
func (m *Metrics) PointsAwarded(source string, pts int) {
	if m == nil || pts <= 0 {
		return
	}
	m.points.WithLabelValues(source).Add(float64(pts))
}
