package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/specht/specht-client/internal/di"
)

var (
	// Container is the dependency injection container
	Container *di.Container

	// ConfigPath is the path to the settings file
	ConfigPath string

	// LogLevel overrides the configured logging level
	LogLevel string

	// RootCmd is the root command for CLI
	RootCmd = &cobra.Command{
		Use:   "specht",
		Short: "Specht - tunnel definitions from a config directory",
		Long: `Specht keeps the persisted list of tunnel definitions in lockstep with a
directory of tunnel config files, one file per tunnel, and exposes the live
connection state of every tunnel.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()

			Container = di.NewContainer()
			if err := Container.Initialize(ConfigPath, LogLevel); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if Container != nil {
				Container.Close()
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// fail prints the error, releases the container and exits
func fail(format string, args ...interface{}) {
	fmt.Printf("Error: "+format+"\n", args...)
	if Container != nil {
		Container.Close()
	}
	os.Exit(1)
}

// initTunnels wires the registry and services or exits
func initTunnels() {
	if err := Container.InitializeTunnels(); err != nil {
		fail("%v", err)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Path to settings file (default: ~/.config/specht/settings.yaml)")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Set logging level (debug, info, warn, error)")
}
