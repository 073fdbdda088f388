package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/tcpsniff/internal/config"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and dissect live TCP traffic",
	Long: `
Capture packets from a network interface and report every TCP segment.

Examples:
  tcpsniff capture                             # enp0s3, filter "tcp", promiscuous
  tcpsniff capture -i eth0 -f "tcp port 443"   # custom interface and filter
  tcpsniff capture -i eth0 -n 10 --format json # stop after 10 reports, JSON output
  tcpsniff capture --source afpacket -i eth0   # AF_PACKET ring instead of libpcap
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyCaptureFlags(cmd.Flags(), cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runPipeline(ctx, cfg)
		return err
	},
}

func init() {
	addCaptureFlags(captureCmd.Flags())
}

// addCaptureFlags registers the live capture flags.
func addCaptureFlags(f *pflag.FlagSet) {
	f.StringP("interface", "i", "", "network interface to capture on")
	f.Int("snaplen", 0, "snapshot length in bytes")
	f.Bool("promisc", true, "put the interface into promiscuous mode")
	f.Duration("timeout", 0, "read timeout, e.g. 1s")
	f.String("source", "", "capture source: pcap or afpacket")
	addCommonFlags(f)
}

// addCommonFlags registers the flags shared by capture and replay.
func addCommonFlags(f *pflag.FlagSet) {
	f.StringP("filter", "f", "", `BPF filter expression (default "tcp")`)
	f.IntP("count", "n", 0, "stop after this many reported packets (0 = unlimited)")
	f.String("format", "", "console output format: text or json")
}

// applyCaptureFlags overrides cfg with every flag the user set explicitly,
// then re-validates.
func applyCaptureFlags(f *pflag.FlagSet, cfg *config.Config) error {
	if f.Changed("interface") {
		cfg.Capture.Interface, _ = f.GetString("interface")
	}
	if f.Changed("snaplen") {
		cfg.Capture.SnapLen, _ = f.GetInt("snaplen")
	}
	if f.Changed("promisc") {
		cfg.Capture.Promiscuous, _ = f.GetBool("promisc")
	}
	if f.Changed("timeout") {
		cfg.Capture.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("source") {
		cfg.Capture.Source, _ = f.GetString("source")
	}
	return applyCommonFlags(f, cfg)
}

func applyCommonFlags(f *pflag.FlagSet, cfg *config.Config) error {
	if f.Changed("filter") {
		cfg.Capture.Filter, _ = f.GetString("filter")
	}
	if f.Changed("count") {
		cfg.Capture.Count, _ = f.GetInt("count")
	}
	if f.Changed("format") {
		format, _ := f.GetString("format")
		setConsoleFormat(cfg, format)
	}
	return cfg.Validate()
}

// setConsoleFormat sets the format of every console reporter, adding one if
// none is configured.
func setConsoleFormat(cfg *config.Config, format string) {
	found := false
	for i := range cfg.Reporters {
		if cfg.Reporters[i].Name != "console" {
			continue
		}
		if cfg.Reporters[i].Config == nil {
			cfg.Reporters[i].Config = map[string]any{}
		}
		cfg.Reporters[i].Config["format"] = format
		found = true
	}
	if !found {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{
			Name:   "console",
			Config: map[string]any{"format": format},
		})
	}
}
