package main

import (
	"time"

	"github.com/vshn/downtime-switcher/pkg/cmd"
)

var (
	// these variables are populated by Goreleaser when releasing
	version = "unknown"
	commit  = "-dirty-"
	date    = time.Now().Format("2006-01-02")

	appName     = "downtime-switcher"
	appLongName = "Downtime Switcher"
)

func main() {
	cmd.Execute()
}
