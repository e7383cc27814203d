package smtp

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termination_monitor_smtp_sends_total",
			Help: "Delivery attempts by result",
		},
		[]string{"status"},
	)

	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termination_monitor_smtp_send_duration_seconds",
			Help:    "Duration of delivery attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(sendTotal)
	prometheus.MustRegister(sendDuration)
}

// recordSend records metrics of one delivery attempt
func recordSend(status string, duration float64) {
	sendTotal.WithLabelValues(status).Inc()
	sendDuration.WithLabelValues(status).Observe(duration)
}
