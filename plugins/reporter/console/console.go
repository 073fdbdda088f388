// Package console implements the console reporter.
// It prints each report to stdout, either in the classic sniffer block
// layout or as one JSON object per line.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// ConsoleReporter writes reports to an io.Writer, stdout by default.
type ConsoleReporter struct {
	format        string
	out           io.Writer
	enc           *json.Encoder
	reportedCount atomic.Uint64
}

// Config represents console reporter configuration.
type Config struct {
	Format string `mapstructure:"format"` // "text" or "json", default "text"
}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() plugin.Reporter {
	return newConsoleReporter(os.Stdout)
}

func newConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		format: FormatText,
		out:    out,
		enc:    json.NewEncoder(out),
	}
}

// Name returns the plugin name.
func (r *ConsoleReporter) Name() string {
	return "console"
}

// Init initializes the reporter with configuration.
func (r *ConsoleReporter) Init(config map[string]any) error {
	cfg := Config{Format: FormatText}
	if err := plugin.DecodeConfig(config, &cfg); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	if cfg.Format != FormatText && cfg.Format != FormatJSON {
		return fmt.Errorf("console: %w: invalid format %q, must be json or text", core.ErrConfigInvalid, cfg.Format)
	}
	r.format = cfg.Format
	return nil
}

// Start starts the reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("format", r.format).Debug("console reporter started")
	return nil
}

// Stop stops the reporter.
func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("console reporter stopped")
	return nil
}

// Report writes one report.
func (r *ConsoleReporter) Report(ctx context.Context, report *core.PacketReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	var err error
	if r.format == FormatJSON {
		err = r.enc.Encode(report.Record())
	} else {
		err = r.writeText(report)
	}
	if err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}

	r.reportedCount.Add(1)
	return nil
}

// writeText prints the block layout:
//
//	Ethernet Header:
//	   Src MAC: 00:11:22:33:44:55
//	   ...
//	Message Size: 20 bytes
func (r *ConsoleReporter) writeText(rep *core.PacketReport) error {
	_, err := fmt.Fprintf(r.out,
		"Ethernet Header:\n"+
			"   Src MAC: %s\n"+
			"   Dst MAC: %s\n"+
			"IP Header:\n"+
			"   Src IP: %s\n"+
			"   Dst IP: %s\n"+
			"TCP Header:\n"+
			"   Src Port: %d\n"+
			"   Dst Port: %d\n"+
			"Message Size: %s\n\n",
		rep.SrcMAC, rep.DstMAC,
		rep.SrcIP, rep.DstIP,
		rep.SrcPort, rep.DstPort,
		messageSize(rep),
	)
	return err
}

func messageSize(rep *core.PacketReport) string {
	switch {
	case rep.Truncated:
		return "truncated (IP total length shorter than headers)"
	case rep.Snapped:
		return fmt.Sprintf("%d bytes (%d captured)", rep.PayloadSize, rep.CapturedPayload)
	default:
		return fmt.Sprintf("%d bytes", rep.PayloadSize)
	}
}

// Flush is a no-op; every report is written straight through.
func (r *ConsoleReporter) Flush(ctx context.Context) error {
	return nil
}
