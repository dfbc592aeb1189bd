package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cstactl: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cstactl",
		Short: "CSTA XML client",
		Long: `cstactl connects to a CSTA XML server, logs in and exchanges
framed XML commands and events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "csta.toml", "path to the client config file")

	root.AddCommand(
		listenCmd(&configPath),
		sendCmd(&configPath),
		configCmd(),
		versionCmd(),
	)
	return root
}
