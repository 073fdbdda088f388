// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/tcpsniff/internal/config"
	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"

	_ "firestige.xyz/tcpsniff/plugins"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tcpsniff",
	Short: "tcpsniff - Ethernet/IPv4/TCP packet dissector",
	Long: `tcpsniff captures TCP traffic from a live interface or a capture file,
dissects each frame through the Ethernet, IPv4 and TCP headers, and reports
MAC addresses, IP addresses, ports and the TCP payload size of every packet.

Malformed frames are counted and logged, never reported; non-IPv4 and
non-TCP frames are skipped silently.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and TCPSNIFF_* env vars apply when empty)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pluginsCmd)
}

// ExitCode maps a command error to the process exit status. Failing to open
// the capture device or install the filter exits with 2, anything else with 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, core.ErrDeviceOpen),
		errors.Is(err, core.ErrFilterInvalid),
		errors.Is(err, core.ErrUnsupportedLinkType):
		return 2
	default:
		return 1
	}
}

// PrintError writes err the way the classic sniffer did for its fatal cases.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

// loadConfig loads the configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
