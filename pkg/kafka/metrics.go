package kafka

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts producer and consumer activity per topic.
type Metrics struct {
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	consumed      *prometheus.CounterVec
	failed        *prometheus.CounterVec
	handleSeconds *prometheus.HistogramVec
}

// NewMetrics registers the kafka collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_kafka_published_total",
			Help: "Events published.",
		}, []string{"topic"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_kafka_publish_errors_total",
			Help: "Events that could not be published.",
		}, []string{"topic"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_kafka_consumed_total",
			Help: "Events handled successfully.",
		}, []string{"topic", "group"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_kafka_consume_failed_total",
			Help: "Events skipped after exhausting handler retries.",
		}, []string{"topic", "group"}),
		handleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "natours_kafka_handle_duration_seconds",
			Help:    "Handler latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "group"}),
	}
	reg.MustRegister(m.published, m.publishErrors, m.consumed, m.failed, m.handleSeconds)
	return m
}
