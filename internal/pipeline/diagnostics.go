package pipeline

import (
	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/internal/metrics"
)

// Diagnostics receives malformed-packet events. It is kept apart from the
// report stream.
type Diagnostics interface {
	Malformed(layer string, err error, raw core.RawPacket)
}

// MetricsDiagnostics counts malformed packets in Prometheus and logs them.
type MetricsDiagnostics struct {
	logger log.Logger
}

// NewMetricsDiagnostics creates the default diagnostics sink.
func NewMetricsDiagnostics() *MetricsDiagnostics {
	return &MetricsDiagnostics{logger: log.GetLogger().WithField("component", "diagnostics")}
}

func (d *MetricsDiagnostics) Malformed(layer string, err error, raw core.RawPacket) {
	reason := Reason(err)
	metrics.MalformedPacketsTotal.WithLabelValues(layer, reason).Inc()

	d.logger.WithFields(map[string]interface{}{
		"layer":       layer,
		"reason":      reason,
		"capture_len": len(raw.Data),
	}).WithError(err).Warn("malformed packet")
}
