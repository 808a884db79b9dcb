// Package metrics exposes live sampling figures to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics updated by the sampling loop.
var (
	CurrentRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rocemon_rate_mbps",
			Help: "Most recent interface throughput sample in Mbps.",
		},
		[]string{"interface", "direction"})
	RateHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rocemon_sample_rate_mbps",
			Help: "A histogram of sampled interface rates.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000},
		},
		[]string{"direction"},
	)
	SampleCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rocemon_samples_total",
			Help: "Number of samples produced by the sampling loop.",
		})
	TickErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocemon_tick_errors_total",
			Help: "Number of sampling ticks that lost data, by collaborator.",
		},
		[]string{"source"},
	)
	RDMAPortLines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rocemon_rdma_port_lines",
			Help: "Socket listing lines matching the RDMA CM or RoCEv2 ports in the latest sample.",
		})
)
