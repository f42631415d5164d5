package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/cantiming/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cantiming",
		Short: "CAN bit timing solver",
		Long: `cantiming computes CAN bit timing parameters (prescaler, BS1, BS2, SJW)
for a peripheral clock and target bitrate, and packs them into controller
bit-timing registers.`,
		Version:       version.GetVersion(buildVersion, buildCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initGlobals(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default from CANTIMING_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "History database path (default from CANTIMING_DB_PATH or ~/.cantiming/history.db)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(solveCmd())
	rootCmd.AddCommand(candidatesCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(encodersCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(remoteCmd())
	rootCmd.AddCommand(certCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion(buildVersion, buildCommit, buildTime))
		},
	}
}
