package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/specht/specht-client/internal/infrastructure/transport"
	"github.com/specht/specht-client/internal/infrastructure/watcher"
)

var serveNoWatch bool

// serveCmd keeps the registry reconciled and exposes the control socket
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control surface",
	Long: `Reconcile once at startup, then keep running: re-reconcile after edits to the
config directory, track tunnel status, and serve the control socket at /control
and prometheus metrics at /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		initTunnels()
		if err := serve(); err != nil {
			fail("%v", err)
		}
	},
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := Container.Logger
	svc := Container.TunnelService

	feed := transport.NewStatusFeed(ctx, svc, log)
	svc.SetPublisher(feed)
	Container.Alerter.Add(feed)

	mux := http.NewServeMux()
	mux.Handle(transport.ControlPath, feed)
	mux.Handle("/metrics", Container.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{
		Addr:              Container.Config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var dirWatcher *watcher.DirWatcher
	if !serveNoWatch {
		var err error
		dirWatcher, err = watcher.NewDirWatcher(Container.Config.ConfigDir, Container.Config.ConfigExtension,
			Container.Config.WatchDebounce, log)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := svc.Reconcile(gctx)
		if err != nil {
			// a failed startup pass is alerted; serving goes on
			log.Error("Startup reconcile failed: %v", err)
			return nil
		}
		log.Info("Startup reconcile created %d tunnels", len(report.Created))
		return nil
	})

	g.Go(func() error {
		return svc.Run(gctx, Container.Sessions)
	})

	if dirWatcher != nil {
		g.Go(func() error {
			return dirWatcher.Run(gctx, func() {
				log.Info("Config directory changed, reconciling")
				svc.TriggerReconcile(gctx, nil)
			})
		})
	}

	g.Go(func() error {
		log.Info("Control socket listening on ws://%s%s", Container.Config.ListenAddress, transport.ControlPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		feed.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reconcile on config directory edits")
}
