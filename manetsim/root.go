package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/syifan/manetsim/logging"
	"github.com/tebeka/atexit"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "manetsim",
	Short: "MANET routing protocol throughput experiment",
	Long: "manetsim moves wireless nodes around a square area, sends constant " +
		"bit rate traffic between them over a MANET routing protocol, and " +
		"records the received throughput and the network state every second.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}

		cmd.SetContext(logging.NewContext(cmd.Context(), logging.New(level)))

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn or error")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}
