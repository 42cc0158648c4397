package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/infrastructure/console"
	"github.com/specht/specht-client/internal/infrastructure/transport"
)

var (
	listRemote bool
	listMenu   bool
)

// listCmd prints the persisted tunnel definitions
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tunnel definitions",
	Long: `List the persisted tunnel definitions. With --remote the list, including live
connection status, comes from a running 'specht serve'.`,
	Run: func(cmd *cobra.Command, args []string) {
		var snap *model.SnapshotPayload
		if listRemote {
			client := transport.NewClient(Container.Config.ListenAddress, Container.Logger)
			if err := client.Connect(); err != nil {
				fail("%v", err)
			}
			defer client.Close()

			var err error
			if snap, err = client.FetchSnapshot(5 * time.Second); err != nil {
				fail("%v", err)
			}
		} else {
			initTunnels()
			ctx, cancel := context.WithTimeout(context.Background(), Container.Config.StoreTimeout+time.Second)
			defer cancel()

			done := make(chan error, 1)
			Container.Index.Rebuild(ctx, func(err error) { done <- err })
			select {
			case err := <-done:
				if err != nil {
					fail("%v", err)
				}
			case <-ctx.Done():
				fail("%v", ctx.Err())
			}
			s := Container.TunnelService.Snapshot()
			snap = &s
		}

		if listMenu {
			if err := console.Render(os.Stdout, console.BuildMenu(*snap)); err != nil {
				fail("%v", err)
			}
			return
		}
		printTunnels(os.Stdout, snap)
	},
}

func init() {
	RootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listRemote, "remote", false, "Read the tunnel list from a running 'specht serve'")
	listCmd.Flags().BoolVar(&listMenu, "menu", false, "Render the list as the control menu")
}
