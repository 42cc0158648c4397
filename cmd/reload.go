package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/infrastructure/transport"
)

var (
	reloadRemote  bool
	reloadTimeout time.Duration
)

// reloadCmd replaces the tunnel registry with the config directory contents
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reconcile tunnel definitions with the config directory",
	Long: `Remove every persisted tunnel definition and recreate one per valid config file.
With --remote the pass runs inside a running 'specht serve'.`,
	Run: func(cmd *cobra.Command, args []string) {
		if reloadRemote {
			client := transport.NewClient(Container.Config.ListenAddress, Container.Logger)
			if err := client.Connect(); err != nil {
				fail("%v", err)
			}
			defer client.Close()

			report, err := client.Reload(reloadTimeout)
			if err != nil {
				fail("%v", err)
			}
			printReport(os.Stdout, report)
			if report.Failed {
				fail("reconcile pass aborted")
			}
			return
		}

		initTunnels()
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()

		report, err := Container.TunnelService.Reconcile(ctx)
		if report != nil {
			payload := model.NewReportPayload(report)
			printReport(os.Stdout, &payload)
		}
		if err != nil {
			fail("%v", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(reloadCmd)
	reloadCmd.Flags().BoolVar(&reloadRemote, "remote", false, "Ask a running 'specht serve' to reconcile")
	reloadCmd.Flags().DurationVar(&reloadTimeout, "timeout", time.Minute, "Maximum time to wait for the pass")
}
