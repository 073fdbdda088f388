// Package pipeline drives packets from a capture source through the
// dissector to the reporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/core/decoder"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/internal/metrics"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

// Pipeline is a single-threaded read -> handle -> report loop.
type Pipeline struct {
	name        string
	capturer    plugin.Capturer
	handler     *Handler
	reporters   []plugin.Reporter
	diagnostics Diagnostics
	limit       uint64
	metrics     Metrics
	logger      log.Logger
}

// Config contains pipeline configuration.
type Config struct {
	Name        string // metric label for the capture source
	Capturer    plugin.Capturer
	Decoder     decoder.Decoder // nil selects the standard chain
	Reporters   []plugin.Reporter
	Diagnostics Diagnostics // nil selects MetricsDiagnostics
	Limit       int         // stop after this many reports, 0 = unlimited
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = NewMetricsDiagnostics()
	}
	var limit uint64
	if cfg.Limit > 0 {
		limit = uint64(cfg.Limit)
	}

	return &Pipeline{
		name:        cfg.Name,
		capturer:    cfg.Capturer,
		handler:     NewHandler(cfg.Decoder),
		reporters:   cfg.Reporters,
		diagnostics: cfg.Diagnostics,
		limit:       limit,
		logger:      log.GetLogger().WithField("pipeline", cfg.Name),
	}
}

// Run starts the plugins, processes packets until ctx is cancelled, the
// source is exhausted or the limit is reached, then stops the plugins.
// Errors opening the source or reading from it are returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.capturer == nil {
		return errors.New("pipeline: no capturer configured")
	}
	if len(p.reporters) == 0 {
		return errors.New("pipeline: no reporters configured")
	}

	started, err := p.startReporters(ctx)
	defer func() { p.stopReporters(started) }()
	if err != nil {
		return err
	}

	if err := p.capturer.Start(ctx); err != nil {
		return fmt.Errorf("start capturer %s: %w", p.capturer.Name(), err)
	}
	defer func() {
		p.recordCaptureStats()
		if stopErr := p.capturer.Stop(context.Background()); stopErr != nil {
			p.logger.WithError(stopErr).Warn("capturer stop failed")
		}
	}()

	p.logger.WithField("capturer", p.capturer.Name()).Info("pipeline started")
	err = p.loop(ctx)
	s := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"received":  s.Received,
		"reported":  s.Reported,
		"skipped":   s.Skipped,
		"malformed": s.Malformed,
	}).Info("pipeline stopped")
	return err
}

func (p *Pipeline) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := p.capturer.ReadPacket()
		switch {
		case err == nil:
		case errors.Is(err, core.ErrReadTimeout):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			if ctx.Err() != nil {
				return nil
			}
			p.metrics.ReadErrors.Add(1)
			return fmt.Errorf("read packet: %w", err)
		}

		p.Process(ctx, raw)
		if p.limit > 0 && p.metrics.Reported.Load() >= p.limit {
			return nil
		}
	}
}

// Process handles one packet and dispatches its outcome.
func (p *Pipeline) Process(ctx context.Context, raw core.RawPacket) Result {
	p.metrics.Received.Add(1)

	res := p.handler.Handle(raw)
	metrics.PacketsTotal.WithLabelValues(p.name, res.Outcome.String()).Inc()

	switch res.Outcome {
	case OutcomeSkipped:
		p.metrics.Skipped.Add(1)
	case OutcomeMalformed:
		p.metrics.Malformed.Add(1)
		p.diagnostics.Malformed(res.Layer, res.Err, raw)
	case OutcomeReported:
		p.metrics.Reported.Add(1)
		metrics.PayloadBytes.Observe(float64(res.Report.PayloadSize))
		p.dispatch(ctx, res.Report)
	}
	return res
}

func (p *Pipeline) dispatch(ctx context.Context, report *core.PacketReport) {
	for _, r := range p.reporters {
		if err := r.Report(ctx, report); err != nil {
			p.metrics.ReportErrors.Add(1)
			metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
			p.logger.WithField("reporter", r.Name()).WithError(err).Error("report failed")
		}
	}
}

func (p *Pipeline) startReporters(ctx context.Context) ([]plugin.Reporter, error) {
	started := make([]plugin.Reporter, 0, len(p.reporters))
	for _, r := range p.reporters {
		if err := r.Start(ctx); err != nil {
			return started, fmt.Errorf("start reporter %s: %w", r.Name(), err)
		}
		started = append(started, r)
	}
	return started, nil
}

func (p *Pipeline) stopReporters(started []plugin.Reporter) {
	ctx := context.Background()
	for _, r := range started {
		if err := r.Flush(ctx); err != nil {
			p.logger.WithField("reporter", r.Name()).WithError(err).Error("reporter flush failed")
		}
		if err := r.Stop(ctx); err != nil {
			p.logger.WithField("reporter", r.Name()).WithError(err).Warn("reporter stop failed")
		}
	}
}

func (p *Pipeline) recordCaptureStats() {
	cs := p.capturer.Stats()
	metrics.CaptureDropsTotal.WithLabelValues(p.name, "kernel").Add(float64(cs.PacketsDropped))
	metrics.CaptureDropsTotal.WithLabelValues(p.name, "interface").Add(float64(cs.PacketsIfDropped))
	if cs.PacketsDropped > 0 || cs.PacketsIfDropped > 0 {
		p.logger.WithFields(map[string]interface{}{
			"dropped":    cs.PacketsDropped,
			"if_dropped": cs.PacketsIfDropped,
		}).Warn("capture source dropped packets")
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}
