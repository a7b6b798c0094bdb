package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the chat engine.
type EngineMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	degradedTotal  prometheus.Counter
	webhookLatency prometheus.Histogram
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioskin",
			Subsystem: "chatbot",
			Name:      "inbound_messages_total",
			Help:      "Total inbound WhatsApp messages by processing outcome",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioskin",
			Subsystem: "chatbot",
			Name:      "outbound_messages_total",
			Help:      "Total outbound WhatsApp sends by status",
		}, []string{"status"}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bioskin",
			Subsystem: "chatbot",
			Name:      "degraded_operations_total",
			Help:      "Messages served from the in-process fallback store",
		}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bioskin",
			Subsystem: "chatbot",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook message processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.degradedTotal, m.webhookLatency)
	return m
}

func (m *EngineMetrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *EngineMetrics) ObserveDegraded() {
	if m == nil {
		return
	}
	m.degradedTotal.Inc()
}

func (m *EngineMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}
