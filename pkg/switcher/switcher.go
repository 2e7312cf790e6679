package switcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/vshn/downtime-switcher/pkg/downtime"
	"github.com/vshn/downtime-switcher/pkg/feed"
	"github.com/vshn/downtime-switcher/pkg/metrics"
	"github.com/vshn/downtime-switcher/pkg/policy"
	"github.com/vshn/downtime-switcher/pkg/topology"
	"github.com/vshn/downtime-switcher/pkg/types"
)

// DefaultCalendarHorizon bounds how far ahead local calendar windows are read.
const DefaultCalendarHorizon = 7 * 24 * time.Hour

// CalendarStore provides operator-declared downtimes.
type CalendarStore interface {
	Records(now time.Time, horizon time.Duration) ([]types.DowntimeRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, clouds []topology.CloudEvents, probeActive bool) error
}

type Config struct {
	Sources feed.Sources
	Filter  feed.Filter
	Policy  *policy.Policy
	Loader  *feed.Loader

	Actuator topology.Actuator
	// Notifier and Calendar are optional.
	Notifier        Notifier
	Calendar        CalendarStore
	CalendarHorizon time.Duration

	Metrics *metrics.Metrics
	Logger  logr.Logger
}

// Switcher runs evaluation cycles and keeps the report of the last one.
type Switcher struct {
	config Config
	log    logr.Logger
	now    func() time.Time

	mu     sync.RWMutex
	latest *Report
}

func New(config Config) (*Switcher, error) {
	switch {
	case config.Policy == nil:
		return nil, errors.New("a lead time policy is required")
	case config.Loader == nil:
		return nil, errors.New("a feed loader is required")
	case config.Actuator == nil:
		return nil, errors.New("an actuator is required")
	case config.Metrics == nil:
		return nil, errors.New("metrics are required")
	}
	if config.CalendarHorizon <= 0 {
		config.CalendarHorizon = DefaultCalendarHorizon
	}
	return &Switcher{
		config: config,
		log:    config.Logger,
		now:    time.Now,
	}, nil
}

// Latest returns the report of the last successful cycle, or nil before the
// first one completed.
func (s *Switcher) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Switcher) publish(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
}

// Run executes a cycle right away and then every interval until ctx is
// done. Failed cycles are logged and retried on the next tick.
func (s *Switcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error(err, "Cycle failed, retrying on next tick", "interval", interval)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle fetches all feeds, evaluates the topology, sends the resulting
// status changes and notifications and publishes the report.
func (s *Switcher) RunCycle(ctx context.Context) (*Report, error) {
	now := s.now().UTC().Truncate(time.Second)
	id := uuid.NewString()
	log := s.log.WithValues("cycle", id)
	log.Info("Starting cycle", "now", now)

	report, err := s.cycle(ctx, log, id, now)
	s.config.Metrics.Cycle(now, err)
	if err != nil {
		return nil, err
	}
	s.publish(report)
	log.Info("Cycle finished", "changed", report.Changed, "failures", len(report.Failures))
	return report, nil
}

func (s *Switcher) cycle(ctx context.Context, log logr.Logger, id string, now time.Time) (*Report, error) {
	snap, err := feed.Fetch(ctx, s.config.Loader, s.config.Sources)
	if err != nil {
		return nil, err
	}
	topo := snap.Build(log, s.config.Policy, s.config.Filter)

	records := snap.Calendar.Records(log)
	if s.config.Calendar != nil {
		local, err := s.config.Calendar.Records(now, s.config.CalendarHorizon)
		if err != nil {
			return nil, types.ConfigurationFailure{Source: "local calendar", Err: err}
		}
		log.V(1).Info("Merging local calendar", "records", len(local))
		records = append(records, local...)
	}
	attached := topo.AttachDowntimes(downtime.Ingest(log, records, now))
	s.config.Metrics.Downtimes(attached)

	topo.Evaluate(now)
	res := topo.Act(ctx, instrumented{s.config.Actuator, s.config.Metrics})

	if res.Changed > 0 {
		sc := feed.Schedconfig{}
		if err := s.config.Loader.Load(ctx, s.config.Sources.Schedconfig, &sc); err != nil {
			log.Error(err, "Could not refetch queue statuses, final statuses are unknown")
		} else {
			topo.Reconcile(sc.Statuses())
		}
	}

	events := topo.CollectEvents()
	if s.config.Notifier != nil {
		if err := s.config.Notifier.Notify(ctx, events, snap.ProbeState.Active()); err != nil {
			log.Error(err, "Failed to send notifications")
		}
	}

	report := &Report{
		Cycle:       id,
		Time:        now,
		ProbeActive: snap.ProbeState.Active(),
		Downtimes:   attached,
		Changed:     res.Changed,
		Board:       Board(topo),
		Changes:     Changes(events),
	}
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, f.Error())
	}

	s.config.Metrics.ResetQueues()
	for _, b := range report.Board {
		status := b.Status
		if status != topology.StatusNone {
			status = topology.NormalizeQueueStatus(status)
		}
		s.config.Metrics.SetQueueStatus(b.Cloud, b.Site, b.Queue, status)
	}
	return report, nil
}

// instrumented counts the outcome of every status change.
type instrumented struct {
	topology.Actuator
	metrics *metrics.Metrics
}

func (i instrumented) ChangeStatus(ctx context.Context, entity topology.EntityType, uid, status, comment string) error {
	err := i.Actuator.ChangeStatus(ctx, entity, uid, status, comment)
	i.metrics.Actuation(string(entity), err)
	return err
}
