package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/tcpsniff/internal/config"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration and every plugin section without opening
any device.

Examples:
  tcpsniff validate -c tcpsniff.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), configFile)
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List built-in capture sources and reporters",
	Run: func(cmd *cobra.Command, args []string) {
		printPlugins(cmd.OutOrStdout())
	},
}

func printConfig(w io.Writer, cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// runValidate loads the configuration and initializes, but does not start,
// every configured plugin.
func runValidate(w io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	if _, err := buildPipeline(cfg); err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(w, "VALID: source %s, %d reporter(s)\n", cfg.Capture.Source, len(cfg.Reporters))
	return nil
}

func printPlugins(w io.Writer) {
	fmt.Fprintln(w, "capture sources:")
	for _, name := range plugin.ListCapturers() {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w, "reporters:")
	for _, name := range plugin.ListReporters() {
		fmt.Fprintf(w, "  %s\n", name)
	}
}
