package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vshn/downtime-switcher/pkg/actuator"
	"github.com/vshn/downtime-switcher/pkg/feed"
	"github.com/vshn/downtime-switcher/pkg/metrics"
	"github.com/vshn/downtime-switcher/pkg/notify"
	"github.com/vshn/downtime-switcher/pkg/policy"
	"github.com/vshn/downtime-switcher/pkg/store"
	"github.com/vshn/downtime-switcher/pkg/switcher"
	"github.com/vshn/downtime-switcher/pkg/topology"
)

// switcherConfig holds the flags shared by all commands running cycles.
type switcherConfig struct {
	sources     feed.Sources
	filter      feed.Filter
	policyFile  string
	feedHeaders map[string]string
	feedTimeout time.Duration
	attempts    uint64
	pause       time.Duration

	actuator actuator.Config
	notify   notify.Config
	smtpAddr string

	horizon time.Duration
	dryRun  bool
}

func (c *switcherConfig) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.sources.Schedconfig, "schedconfig-url", "", "URL or file of the queue topology feed")
	f.StringVar(&c.sources.DDMTopology, "ddm-url", "", "URL or file of the storage topology feed")
	f.StringVar(&c.sources.SwitcherStatus, "switcher-status-url", "", "URL or file of the switcher status feed")
	f.StringVar(&c.sources.Sites, "sites-url", "", "URL or file of the sites feed")
	f.StringVar(&c.sources.Calendar, "calendar-url", "", "URL or file of the downtime calendar feed")
	f.StringVar(&c.sources.ProbeState, "probe-state-url", "", "URL or file of the probe state feed")
	f.StringToStringVar(&c.feedHeaders, "feed-headers", nil, "Headers to include when fetching feeds")
	f.DurationVar(&c.feedTimeout, "feed-timeout", time.Minute, "Timeout of a single feed request")
	f.Uint64Var(&c.attempts, "feed-attempts", feed.DefaultAttempts, "Attempts to fetch a feed before the cycle is aborted")
	f.DurationVar(&c.pause, "feed-pause", feed.DefaultPause, "Pause between attempts to fetch a feed")

	f.StringSliceVar(&c.filter.Clouds.Allow, "clouds", nil, "Clouds to handle, all if empty")
	f.StringSliceVar(&c.filter.Clouds.Exclude, "exclude-clouds", nil, "Clouds to skip")
	f.StringSliceVar(&c.filter.Sites.Allow, "sites", nil, "Sites to handle, all if empty")
	f.StringSliceVar(&c.filter.Sites.Exclude, "exclude-sites", nil, "Sites to skip")
	f.StringSliceVar(&c.filter.Queues.Allow, "queues", nil, "Queues to handle, all if empty")
	f.StringSliceVar(&c.filter.Queues.Exclude, "exclude-queues", nil, "Queues to skip")
	f.StringVar(&c.policyFile, "policy-file", "./policy.yaml", "Path of the lead time policy")

	f.StringVar(&c.actuator.QueueURL, "queue-url", "", "URL template to set a queue status, placeholders {uid}, {status} and {reason}")
	f.StringVar(&c.actuator.CEURL, "ce-url", "", "URL template to set a CE state, placeholders {uid}, {status} and {reason}")
	f.StringVar(&c.actuator.CertFile, "cert-file", "", "x509 client certificate, may include the key")
	f.StringVar(&c.actuator.KeyFile, "key-file", "", "x509 client key, defaults to the certificate file")
	f.StringVar(&c.actuator.CAFile, "ca-file", "", "CA bundle to verify the actuation endpoints")
	f.DurationVar(&c.actuator.Timeout, "actuator-timeout", 0, "Timeout of a single status change, 0 waits forever")
	f.Float64Var(&c.actuator.Rate, "actuator-rate", 0, "Maximum status changes per second, 0 for unlimited")

	f.StringVar(&c.notify.Sender, "mail-sender", "", "Sender address of notifications")
	f.StringToStringVar(&c.notify.Recipients, "cloud-recipients", nil, "Comma separated notification addresses per cloud, e.g. DE=a@example.org")
	f.StringSliceVar(&c.notify.Extra, "mail-cc", nil, "Addresses copied on every notification")
	f.StringVar(&c.smtpAddr, "smtp-host", "", "SMTP relay as host:port, notifications are only logged if empty")

	f.DurationVar(&c.horizon, "calendar-horizon", switcher.DefaultCalendarHorizon, "How far ahead windows of the local calendar are considered")
	f.BoolVar(&c.dryRun, "dry-run", false, "Only log status changes and notifications")
}

func (c *switcherConfig) feedClient() *http.Client {
	rt := http.DefaultTransport
	if len(c.feedHeaders) > 0 {
		rt = headerInjector{
			headers: c.feedHeaders,
		}
	}
	return &http.Client{Transport: rt, Timeout: c.feedTimeout}
}

// build wires a Switcher. cal may be nil to skip the local calendar.
func (c *switcherConfig) build(log logr.Logger, cal *store.DowntimeStore, reg prometheus.Registerer) (*switcher.Switcher, error) {
	p, err := policy.Load(c.policyFile)
	if err != nil {
		return nil, err
	}

	loader := feed.NewLoader(log.WithName("feed"), c.feedClient())
	loader.Attempts = c.attempts
	loader.Pause = c.pause

	var a topology.Actuator
	var sender notify.Sender
	if c.dryRun {
		a = actuator.NewDryRun(log.WithName("actuator"))
		sender = notify.Log{Logger: log.WithName("notify")}
	} else {
		a, err = actuator.NewHTTP(log.WithName("actuator"), c.actuator)
		if err != nil {
			return nil, fmt.Errorf("could not set up actuator: %w", err)
		}
		sender = notify.Log{Logger: log.WithName("notify")}
		if c.smtpAddr != "" {
			sender = notify.SMTP{Addr: c.smtpAddr}
		}
	}

	config := switcher.Config{
		Sources:         c.sources,
		Filter:          c.filter,
		Policy:          p,
		Loader:          loader,
		Actuator:        a,
		Notifier:        notify.New(log.WithName("notify"), c.notify, sender),
		CalendarHorizon: c.horizon,
		Metrics:         metrics.New(reg),
		Logger:          log,
	}
	// keep a nil store out of the interface
	if cal != nil {
		config.Calendar = cal
	}
	return switcher.New(config)
}

type headerInjector struct {
	headers map[string]string
}

func (h headerInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	for key, value := range h.headers {
		r2.Header.Set(key, value)
	}
	return http.DefaultTransport.RoundTrip(r2)
}
