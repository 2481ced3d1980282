package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// outcome: ok, noop or error
	TaskOps *prometheus.CounterVec

	ChatMessages prometheus.Counter
	ChatRejected *prometheus.CounterVec
}

// New registers all collectors. activeSessions may be nil.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdesk_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		TaskOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdesk_task_operations_total",
			Help: "Task workflow operations by kind and outcome",
		}, []string{"op", "outcome"}),
		ChatMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "taskdesk_chat_messages_total",
			Help: "Chat messages accepted",
		}),
		ChatRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdesk_chat_rejected_total",
			Help: "Chat posts rejected by reason",
		}, []string{"reason"}),
	}

	if activeSessions != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "taskdesk_sessions_active",
			Help: "Live login sessions",
		}, activeSessions)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
