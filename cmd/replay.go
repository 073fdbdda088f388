package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/tcpsniff/internal/config"
	"firestige.xyz/tcpsniff/internal/log"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Dissect packets from a pcap or pcapng file",
	Long: `
Replay a capture file through the dissector. The filter runs in userspace.

Examples:
  tcpsniff replay trace.pcap
  tcpsniff replay trace.pcapng -f "tcp port 80" --format json
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Capture.Source = config.SourceFile
		cfg.Capture.File = args[0]
		if err := applyCommonFlags(cmd.Flags(), cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats, err := runPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		log.GetLogger().Info(fmt.Sprintf("replayed %d packets: %d reported, %d skipped, %d malformed",
			stats.Received, stats.Reported, stats.Skipped, stats.Malformed))
		return nil
	},
}

func init() {
	addCommonFlags(replayCmd.Flags())
}
