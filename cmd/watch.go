package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/infrastructure/console"
	"github.com/specht/specht-client/internal/infrastructure/transport"
)

// watchCmd follows the event feed of a running serve process
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow tunnel status from a running 'specht serve'",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := transport.NewClient(Container.Config.ListenAddress, Container.Logger)
		if err := client.Connect(); err != nil {
			fail("%v", err)
		}
		defer client.Close()

		client.RegisterHandler(model.MessageTypeSnapshot, func(msg *model.Message) error {
			var snap model.SnapshotPayload
			if err := msg.ParsePayload(&snap); err != nil {
				return err
			}
			fmt.Println()
			return console.Render(os.Stdout, console.BuildMenu(snap))
		})
		client.RegisterHandler(model.MessageTypeStatus, func(msg *model.Message) error {
			var ev model.StatusEvent
			if err := msg.ParsePayload(&ev); err != nil {
				return err
			}
			fmt.Printf("%s %s: %s\n", timestamp(msg), ev.Name, ev.Status)
			return nil
		})
		client.RegisterHandler(model.MessageTypeAlert, func(msg *model.Message) error {
			var a model.AlertPayload
			if err := msg.ParsePayload(&a); err != nil {
				return err
			}
			fmt.Printf("%s ⚠ %s\n", timestamp(msg), a.Message)
			return nil
		})
		client.RegisterHandler(model.MessageTypeReport, func(msg *model.Message) error {
			var r model.ReportPayload
			if err := msg.ParsePayload(&r); err != nil {
				return err
			}
			printReport(os.Stdout, &r)
			return nil
		})

		if err := client.Listen(ctx); err != nil {
			fail("%v", err)
		}
	},
}

func timestamp(msg *model.Message) string {
	return time.UnixMilli(msg.Timestamp).Format("15:04:05")
}

func init() {
	RootCmd.AddCommand(watchCmd)
}
