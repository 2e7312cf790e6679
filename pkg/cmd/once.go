package cmd

import (
	"encoding/json"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vshn/downtime-switcher/pkg/store"
)

var (
	onceConfig = switcherConfig{}
	onceDBPath string
	onceCmd    = &cobra.Command{
		Use:   "once",
		Short: "Run a single evaluation cycle",
		Long:  "Run a single evaluation cycle and print its report as JSON",
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()

			var cal *store.DowntimeStore
			if onceDBPath != "" {
				s, err := store.NewDowntimeStore(onceDBPath)
				if err != nil {
					log.Fatal(err)
					return
				}
				defer s.CloseDB()
				cal = s
			}

			sw, err := onceConfig.build(logger, cal, prometheus.NewRegistry())
			if err != nil {
				log.Fatal(err)
				return
			}
			report, err := sw.RunCycle(cmd.Context())
			if err != nil {
				log.Fatal(err)
				return
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				log.Fatal(err)
			}
		},
	}
)

func init() {
	onceConfig.register(onceCmd)
	onceCmd.Flags().StringVar(&onceDBPath, "db-file", "", "Path of the SQLite DB file holding the local calendar, none if empty")

	rootCmd.AddCommand(onceCmd)
}
