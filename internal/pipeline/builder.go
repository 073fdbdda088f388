package pipeline

import (
	"firestige.xyz/tcpsniff/internal/core/decoder"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithName sets the name used in logs and metric labels.
func (b *Builder) WithName(name string) *Builder {
	b.config.Name = name
	return b
}

// WithCapturer sets the packet source.
func (b *Builder) WithCapturer(c plugin.Capturer) *Builder {
	b.config.Capturer = c
	return b
}

// WithDecoder overrides the dissection chain.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithReporters appends reporters.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = append(b.config.Reporters, reporters...)
	return b
}

// WithDiagnostics sets the malformed-packet sink.
func (b *Builder) WithDiagnostics(d Diagnostics) *Builder {
	b.config.Diagnostics = d
	return b
}

// WithLimit stops the pipeline after n reports.
func (b *Builder) WithLimit(n int) *Builder {
	b.config.Limit = n
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
