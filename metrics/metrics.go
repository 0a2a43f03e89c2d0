// Package metrics 订阅任务的发布计数，通过 /metrics 暴露给 prometheus。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-gotop/subscribe/feed"
)

const namespace = "feed"

// Metrics 方法在 nil 上调用时不做任何事
type Metrics struct {
	registry      *prometheus.Registry
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	dropped       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Canonical messages published, by task and kind.",
		}, []string{"task", "kind"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Publish failures, by task and kind.",
		}, []string{"task", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Raw messages dropped before publish, by task and reason.",
		}, []string{"task", "reason"}),
	}
	m.registry.MustRegister(
		m.published,
		m.publishErrors,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Published(task string, kind feed.Kind) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(task, string(kind)).Inc()
}

func (m *Metrics) PublishFailed(task string, kind feed.Kind) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(task, string(kind)).Inc()
}

// Dropped reason: malformed / no_port
func (m *Metrics) Dropped(task, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(task, reason).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
