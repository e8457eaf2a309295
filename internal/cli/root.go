// Package cli wires the deck's commands: one-shot status snapshots,
// operation dispatch verbs, and the live monitor.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocs-tools/ocsdeck/internal/config"
	"github.com/ocs-tools/ocsdeck/internal/output"
)

var (
	cfgFile string
	cfg     *config.Config

	// simDir, when set, swaps the router connection for in-process
	// simulated agents loaded from the given schema directory.
	simDir string

	// Global JSON output flag - inherited by all subcommands
	jsonOutput bool

	// Build information - set by goreleaser via ldflags
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ocsdeck",
	Short: "Operator deck for observatory control system agents",
	Long: `ocsdeck is a terminal deck for observatory control system agents:
temperature controllers, power distribution units, antenna control
units, and the rest of the hardware fleet behind a crossbar router.

Quick Start:
  ocsdeck status                       # Health snapshot of every panel
  ocsdeck monitor                      # Live panel monitor (TUI)
  ocsdeck start thermo-1 acq           # Start an agent's data process
  ocsdeck run thermo-1 set_channel channel=4

Development:
  ocsdeck --sim ./agents status        # Run against simulated agents`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Piped output and OCSDECK_OUTPUT_FORMAT switch to JSON even
		// without the flag.
		jsonOutput = output.DetectFormat(jsonOutput) == output.FormatJSON

		if !needsConfig(cmd.Name()) {
			return nil
		}
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return output.PrintCLIErrorOrJSON(output.ConfigError(path, err), jsonOutput)
		}
		return nil
	},
}

// needsConfig reports whether a command reads the deck config.
// Help and version must work on a fresh machine with no config file.
func needsConfig(name string) bool {
	switch name {
	case "ocsdeck", "help", "version", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return true
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ocsdeck %s (commit %s, built %s)\n", Version, Commit, Date)
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/ocsdeck/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&simDir, "sim", "", "agent schema directory; use simulated agents instead of the router")

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(),
		newMonitorCmd(),
		newRunCmd(),
		newAbortCmd(),
		newStartCmd(),
		newStopCmd(),
		newSimCmd(),
	)
}

// Execute runs the root command. Structured CLI errors print
// themselves at the failure site; everything else prints here.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var cliErr *output.CLIError
		if !errors.As(err, &cliErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
