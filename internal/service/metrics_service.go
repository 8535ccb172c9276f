package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the counters specific to
// the intake pipeline: webhook delivery outcomes, photo compression and
// upload results, submission totals.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	webhookDuration  *prometheus.HistogramVec
	webhookTotal     *prometheus.CounterVec
	submissionTotal  *prometheus.CounterVec
	compressionSaved prometheus.Counter
	compressionTotal *prometheus.CounterVec
	uploadTotal      *prometheus.CounterVec

	submissionCount uint64
	webhookFailures uint64
}

// MetricsSnapshot is a lightweight aggregate for health/ops endpoints.
type MetricsSnapshot struct {
	Submissions     uint64    `json:"submissions"`
	WebhookFailures uint64    `json:"webhookFailures"`
	Goroutines      int       `json:"goroutines"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	webhookDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Duration of webhook delivery attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	webhookTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts by terminal outcome",
	}, []string{"outcome"})

	submissionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Intake submissions by result",
	}, []string{"result"})

	compressionSaved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photo_compression_saved_bytes_total",
		Help: "Bytes shaved off photos before upload",
	})

	compressionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photo_compressions_total",
		Help: "Photo compression passes by tier and fallback use",
	}, []string{"tier", "fallback"})

	uploadTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photo_uploads_total",
		Help: "Photo upload attempts by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, webhookDuration, webhookTotal,
		submissionTotal, compressionSaved, compressionTotal, uploadTotal, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		webhookDuration:  webhookDuration,
		webhookTotal:     webhookTotal,
		submissionTotal:  submissionTotal,
		compressionSaved: compressionSaved,
		compressionTotal: compressionTotal,
		uploadTotal:      uploadTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordWebhookDelivery tracks one delivery attempt by terminal outcome.
func (m *MetricsService) RecordWebhookDelivery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.webhookTotal.WithLabelValues(outcome).Inc()
	if outcome != "success" {
		atomic.AddUint64(&m.webhookFailures, 1)
	}
}

// RecordSubmission tracks a submission attempt result ("success",
// "rejected", "webhook_failed", "honeypot").
func (m *MetricsService) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionTotal.WithLabelValues(result).Inc()
	atomic.AddUint64(&m.submissionCount, 1)
}

// RecordCompression tracks one compression pass and the bytes it saved.
func (m *MetricsService) RecordCompression(tier string, usedFallback bool, savedBytes int64) {
	if m == nil {
		return
	}
	fallback := "false"
	if usedFallback {
		fallback = "true"
	}
	m.compressionTotal.WithLabelValues(tier, fallback).Inc()
	if savedBytes > 0 {
		m.compressionSaved.Add(float64(savedBytes))
	}
}

// RecordUpload tracks one photo upload attempt.
func (m *MetricsService) RecordUpload(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.uploadTotal.WithLabelValues(result).Inc()
}

// Snapshot returns aggregate counters for ops endpoints.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Submissions:     atomic.LoadUint64(&m.submissionCount),
		WebhookFailures: atomic.LoadUint64(&m.webhookFailures),
		Goroutines:      runtime.NumGoroutine(),
		GeneratedAt:     time.Now().UTC(),
	}
}
