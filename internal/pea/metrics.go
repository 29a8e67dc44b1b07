package pea

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the Prometheus collectors a Pea reports, registered
// into a caller-supplied registry the same way PrometheusMetrics in
// internal/metrics builds its collector set against a fresh registry.
type Metrics struct {
	messagesIn        *prometheus.CounterVec
	messagesOut       *prometheus.CounterVec
	suppressed        *prometheus.CounterVec
	errors            prometheus.Counter
	watermarkBreaches prometheus.Counter
	dumps             prometheus.Counter
	bufferDepth       prometheus.Gauge
	memoryGB          prometheus.Gauge
}

// NewMetrics constructs and registers a Pea's collectors under
// namespace, labeled with the Pea's derived name.
func NewMetrics(registry *prometheus.Registry, namespace, peaName string) *Metrics {
	m := &Metrics{
		messagesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_messages_in_total", Help: "Inbound messages received",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}, []string{"request_type"}),
		messagesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_messages_out_total", Help: "Outbound messages sent",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}, []string{"request_type"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_messages_suppressed_total", Help: "Messages absorbed without a send",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}, []string{"reason"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_executor_errors_total", Help: "Executor-raised errors",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}),
		watermarkBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_memory_watermark_breaches_total", Help: "Memory watermark breaches",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}),
		dumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pea_executor_dumps_total", Help: "Executor.Save() invocations",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pea_aggregator_buffer_depth", Help: "Distinct request ids buffered awaiting partials",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}),
		memoryGB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pea_used_memory_gb", Help: "Last sampled process RSS in GB",
			ConstLabels: prometheus.Labels{"pea": peaName},
		}),
	}
	registry.MustRegister(m.messagesIn, m.messagesOut, m.suppressed, m.errors,
		m.watermarkBreaches, m.dumps, m.bufferDepth, m.memoryGB)
	return m
}

func (m *Metrics) IncIn(requestType string)  { m.messagesIn.WithLabelValues(requestType).Inc() }
func (m *Metrics) IncOut(requestType string) { m.messagesOut.WithLabelValues(requestType).Inc() }
func (m *Metrics) IncSuppressed(reason string) {
	m.suppressed.WithLabelValues(reason).Inc()
}
func (m *Metrics) IncErrors()            { m.errors.Inc() }
func (m *Metrics) IncWatermarkBreaches() { m.watermarkBreaches.Inc() }
func (m *Metrics) IncDumps()             { m.dumps.Inc() }
func (m *Metrics) SetBufferDepth(n int)  { m.bufferDepth.Set(float64(n)) }
func (m *Metrics) ObserveMemoryGB(gb float64) { m.memoryGB.Set(gb) }
