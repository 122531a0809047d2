package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector defines the interface for collecting sync-engine metrics.
// Components depend on this interface so they never import prometheus
// directly.
type Collector interface {
	RecordEventRouted(eventType string, applied bool)
	RecordStaleDiscard(eventType string)
	RecordMutation(kind string, outcome string)
	RecordReconnectAttempt(success bool)
	RecordPullReconcile(applied bool)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordEventRouted(eventType string, applied bool) {}
func (NoOpCollector) RecordStaleDiscard(eventType string)              {}
func (NoOpCollector) RecordMutation(kind string, outcome string)       {}
func (NoOpCollector) RecordReconnectAttempt(success bool)              {}
func (NoOpCollector) RecordPullReconcile(applied bool)                 {}

// PrometheusCollector implements Collector using prometheus counters.
type PrometheusCollector struct {
	eventsRouted      *prometheus.CounterVec
	staleDiscards     *prometheus.CounterVec
	mutations         *prometheus.CounterVec
	reconnectAttempts *prometheus.CounterVec
	pullReconciles    *prometheus.CounterVec
}

// NewPrometheusCollector creates the collector and registers its metrics.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_events_routed_total",
			Help: "Push events handled by the event router, by type and result.",
		}, []string{"event_type", "result"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_stale_events_discarded_total",
			Help: "Events discarded because their generation predated a cancellation.",
		}, []string{"event_type"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_mutations_total",
			Help: "Bet mutations submitted, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_reconnect_attempts_total",
			Help: "Socket reconnection attempts, by result.",
		}, []string{"result"}),
		pullReconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_pull_reconciles_total",
			Help: "Pull-hydration responses, applied or discarded as stale.",
		}, []string{"result"}),
	}
	reg.MustRegister(c.eventsRouted, c.staleDiscards, c.mutations, c.reconnectAttempts, c.pullReconciles)
	return c
}

func (c *PrometheusCollector) RecordEventRouted(eventType string, applied bool) {
	c.eventsRouted.WithLabelValues(eventType, result(applied)).Inc()
}

func (c *PrometheusCollector) RecordStaleDiscard(eventType string) {
	c.staleDiscards.WithLabelValues(eventType).Inc()
}

func (c *PrometheusCollector) RecordMutation(kind string, outcome string) {
	c.mutations.WithLabelValues(kind, outcome).Inc()
}

func (c *PrometheusCollector) RecordReconnectAttempt(success bool) {
	c.reconnectAttempts.WithLabelValues(result(success)).Inc()
}

func (c *PrometheusCollector) RecordPullReconcile(applied bool) {
	c.pullReconciles.WithLabelValues(result(applied)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
