package cmd

import (
	"context"
	"fmt"

	"firestige.xyz/tcpsniff/internal/config"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/internal/metrics"
	"firestige.xyz/tcpsniff/internal/pipeline"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

// buildPipeline instantiates the configured capturer and reporters from the
// plugin registry and wires them into a pipeline.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	capFactory, err := plugin.GetCapturerFactory(cfg.Capture.Source)
	if err != nil {
		return nil, err
	}
	capturer := capFactory()
	if err := capturer.Init(cfg.Capture.PluginConfig()); err != nil {
		return nil, fmt.Errorf("init capturer %s: %w", capturer.Name(), err)
	}

	reporters := make([]plugin.Reporter, 0, len(cfg.Reporters))
	for _, rc := range cfg.Reporters {
		factory, err := plugin.GetReporterFactory(rc.Name)
		if err != nil {
			return nil, err
		}
		r := factory()
		if err := r.Init(rc.Config); err != nil {
			return nil, fmt.Errorf("init reporter %s: %w", rc.Name, err)
		}
		reporters = append(reporters, r)
	}

	name := cfg.Capture.Interface
	if cfg.Capture.Source == config.SourceFile {
		name = config.SourceFile
	}

	return pipeline.NewBuilder().
		WithName(name).
		WithCapturer(capturer).
		WithReporters(reporters...).
		WithLimit(cfg.Capture.Count).
		Build(), nil
}

// runPipeline runs the pipeline until ctx is cancelled or the source ends,
// serving metrics alongside when enabled.
func runPipeline(ctx context.Context, cfg *config.Config) (pipeline.Stats, error) {
	p, err := buildPipeline(cfg)
	if err != nil {
		return pipeline.Stats{}, err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return pipeline.Stats{}, err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	err = p.Run(ctx)
	return p.Stats(), err
}
