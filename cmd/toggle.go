package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/specht/specht-client/internal/infrastructure/transport"
)

var intentTimeout time.Duration

// toggleCmd starts or stops one tunnel through a running serve process
var toggleCmd = &cobra.Command{
	Use:   "toggle [name]",
	Short: "Start a disconnected tunnel or stop an active one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := transport.NewClient(Container.Config.ListenAddress, Container.Logger)
		if err := client.Connect(); err != nil {
			fail("%v", err)
		}
		defer client.Close()

		snap, err := client.Toggle(args[0], intentTimeout)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Toggled %s\n", args[0])
		printTunnels(os.Stdout, snap)
	},
}

// disconnectCmd stops every active tunnel through a running serve process
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Stop every connected or connecting tunnel",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := transport.NewClient(Container.Config.ListenAddress, Container.Logger)
		if err := client.Connect(); err != nil {
			fail("%v", err)
		}
		defer client.Close()

		snap, err := client.Disconnect(intentTimeout)
		if err != nil {
			fail("%v", err)
		}
		printTunnels(os.Stdout, snap)
	},
}

func init() {
	RootCmd.AddCommand(toggleCmd)
	RootCmd.AddCommand(disconnectCmd)
	toggleCmd.Flags().DurationVar(&intentTimeout, "timeout", 5*time.Second, "Maximum time to wait for the server")
	disconnectCmd.Flags().DurationVar(&intentTimeout, "timeout", 5*time.Second, "Maximum time to wait for the server")
}
