package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	ActionRequests  *prometheus.CounterVec
	ActionLatency   *prometheus.HistogramVec
	AIRequests      *prometheus.CounterVec
	AILatency       *prometheus.HistogramVec
	ScrapeRequests  *prometheus.CounterVec
	BackgroundTasks *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			ActionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total RPC actions handled by action and HTTP status.",
			}, []string{"action", "status"}),
			ActionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Latency distribution for RPC actions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
			AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gemini_requests_total",
				Help:      "Total Gemini API requests by operation and outcome.",
			}, []string{"operation", "status"}),
			AILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gemini_request_duration_seconds",
				Help:      "Latency distribution for Gemini API calls.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
			}, []string{"operation"}),
			ScrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrape_requests_total",
				Help:      "Page reader bridge fetches by outcome.",
			}, []string{"status"}),
			BackgroundTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_tasks_total",
				Help:      "Detached tasks by name and outcome.",
			}, []string{"task", "status"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stripe_webhook_events_total",
				Help:      "Inbound Stripe events by type and outcome.",
			}, []string{"type", "status"}),
		}

		prometheus.MustRegister(
			metricsInstance.ActionRequests,
			metricsInstance.ActionLatency,
			metricsInstance.AIRequests,
			metricsInstance.AILatency,
			metricsInstance.ScrapeRequests,
			metricsInstance.BackgroundTasks,
			metricsInstance.WebhookEvents,
		)
	})
	return metricsInstance
}

// ObserveTask adapts the background runner's observer hook.
func (m *Metrics) ObserveTask(name string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BackgroundTasks.WithLabelValues(name, status).Inc()
}
