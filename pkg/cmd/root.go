package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

var (
	appName     = "downtime-switcher"
	appLongName = "Downtime Switcher"

	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: appLongName,
	Long:  "Takes PanDA queues and their compute endpoints out of service ahead of scheduled downtimes and brings them back afterwards",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		stdr.SetVerbosity(verbosity)
	},
}

func newLogger() logr.Logger {
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.LUTC))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log verbosity, 1 enables debug output")
}
