package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vshn/downtime-switcher/pkg/api"
	"github.com/vshn/downtime-switcher/pkg/store"
)

var (
	runCommandName = "run"
	runConfig      = switcherConfig{}
	serverConfig   = api.ApiServerConfig{}
	runInterval    time.Duration
	dbPath         string
	runCmd         = &cobra.Command{
		Use:   runCommandName,
		Short: "Run evaluation cycles and serve the API",
		Long:  "Run an evaluation cycle every interval and serve the local calendar, the status board and metrics",
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()
			serverConfig.Logger = &logger

			store, err := store.NewDowntimeStore(dbPath)
			if err != nil {
				log.Fatal(err)
				return
			}
			defer store.CloseDB()
			if err := store.InitializeDB(); err != nil {
				log.Fatal(err)
				return
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			sw, err := runConfig.build(logger, store, reg)
			if err != nil {
				log.Fatal(err)
				return
			}
			var server = api.NewApiServer(serverConfig, store, sw, reg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				log.Println("Starting API server ...")
				return server.Start()
			})
			g.Go(func() error {
				return sw.Run(ctx, runInterval)
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownRelease()
				return server.Stop(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				log.Fatalf("Shutdown error: %v", err)
			}
			log.Println("Graceful shutdown complete.")
		},
	}
)

func init() {
	runConfig.register(runCmd)
	runCmd.Flags().DurationVar(&runInterval, "interval", 10*time.Minute, "Time between two evaluation cycles")
	runCmd.Flags().StringVar(&serverConfig.AuthUser, "auth-user", "admin", "Username for authenticating with the API")
	runCmd.Flags().StringVar(&serverConfig.AuthPass, "auth-pass", "", "Password for authenticating with the API")
	runCmd.Flags().StringVar(&dbPath, "db-file", "./data.db", "Path of the SQLite DB file")
	runCmd.Flags().IntVar(&serverConfig.Port, "port", 8080, "Port at which to serve API")
	runCmd.Flags().StringVar(&serverConfig.Host, "host", "0.0.0.0", "Host address to bind")

	rootCmd.AddCommand(runCmd)
}
