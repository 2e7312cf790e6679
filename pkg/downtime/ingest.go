package downtime

import (
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/types"
)

type dedupKey struct {
	endpoint   string
	start, end int64
	kind       string
}

// Ingest converts calendar records into downtimes. Records with WARNING
// severity, records whose window is already closed and exact duplicates
// (same endpoint, start, end and type) are dropped. Invalid records are
// logged and skipped.
func Ingest(log logr.Logger, records []types.DowntimeRecord, now time.Time) []*Downtime {
	seen := map[dedupKey]struct{}{}
	out := []*Downtime{}

	for _, r := range records {
		if err := validate(r); err != nil {
			log.Error(types.IngestFailure{Record: r.Endpoint, Err: err}, "Invalid downtime record")
			continue
		}
		if r.Severity == types.SeverityWarning {
			log.V(1).Info("Ignoring downtime with severity WARNING", "endpoint", r.Endpoint)
			continue
		}
		d := New(r)
		// NOTE: the upstream naming of this check is inverted ("expired");
		// the filter keeps windows that have not ended yet.
		if !d.Interval.StillOpen(now) {
			log.V(1).Info("Ignoring downtime that is already over", "endpoint", r.Endpoint, "end", r.EndTime)
			continue
		}
		k := dedupKey{
			endpoint: r.Endpoint,
			start:    r.StartTime.Unix(),
			end:      r.EndTime.Unix(),
			kind:     r.Type,
		}
		if _, ok := seen[k]; ok {
			log.V(1).Info("Ignoring duplicate downtime", "endpoint", r.Endpoint)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

func validate(r types.DowntimeRecord) error {
	if r.Endpoint == "" {
		return errors.New("endpoint must be set")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return errors.New("start and end time must be set")
	}
	if r.StartTime.After(r.EndTime) {
		return errors.New("end time must be after start time")
	}
	if r.Type != types.ServiceCE && r.Type != types.ServiceSRM {
		return errors.New("type must be CE or SRM")
	}
	return nil
}
