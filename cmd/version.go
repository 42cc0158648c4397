package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version
const Version = "0.3.0"

// versionCmd is the command to display version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Long:  `Display Specht version.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Specht v%s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
