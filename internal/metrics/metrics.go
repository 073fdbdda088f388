// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts handled packets by outcome (reported, skipped, malformed).
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpsniff_packets_total",
			Help: "Total number of packets handled, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// MalformedPacketsTotal counts packets rejected by a header length check.
	MalformedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpsniff_malformed_packets_total",
			Help: "Total number of malformed packets, by layer and reason",
		},
		[]string{"layer", "reason"},
	)

	// PayloadBytes observes declared TCP payload sizes of reported packets.
	PayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcpsniff_payload_bytes",
			Help:    "Declared TCP payload size of reported packets",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1 .. 65536
		},
	)

	// ReporterErrorsTotal counts failed Report calls by reporter.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpsniff_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)

	// CaptureDropsTotal mirrors the capture source's drop counters.
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpsniff_capture_drops_total",
			Help: "Total number of packets dropped by the capture source",
		},
		[]string{"source", "stage"},
	)
)

// Outcome label values for PacketsTotal.
const (
	OutcomeReported  = "reported"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
)
