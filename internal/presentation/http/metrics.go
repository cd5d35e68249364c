package httppresentation

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the RED-style vectors the HTTP layer records into. They are
// created once and injected; middlewares never register metrics themselves.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	Purchases *prometheus.CounterVec
	Downloads *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP request handling in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Purchase capture attempts by outcome.",
			},
			[]string{"outcome"},
		),
		Downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downloads_total",
				Help: "Download redemptions by outcome.",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.Requests, m.Durations, m.Purchases, m.Downloads)
	return m
}
