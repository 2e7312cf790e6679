package feed

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/types"
)

var timeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Calendar is the downtime calendar feed keyed by site.
type Calendar map[string][]CalendarEntry

type CalendarEntry struct {
	AffectedServices string            `json:"affected_services"`
	Classification   string            `json:"classification"`
	Description      string            `json:"description"`
	StartTime        string            `json:"start_time"`
	EndTime          string            `json:"end_time"`
	InfoURL          string            `json:"info_url"`
	Severity         string            `json:"severity"`
	Services         []CalendarService `json:"services"`
}

type CalendarService struct {
	Endpoint string `json:"endpoint"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

func (e CalendarEntry) affects(service string) bool {
	for _, s := range strings.Split(e.AffectedServices, ",") {
		if strings.TrimSpace(s) == service {
			return true
		}
	}
	return false
}

// Records turns the calendar into downtime records, one per affected CE or
// SRM service. Storage services only count when the entry lists SRM among
// its affected services. Entries with unparsable times are logged and
// skipped.
func (c Calendar) Records(log logr.Logger) []types.DowntimeRecord {
	out := []types.DowntimeRecord{}
	for _, site := range slices.Sorted(maps.Keys(c)) {
		for _, e := range c[site] {
			start, err := parseTime(e.StartTime)
			if err == nil {
				var end time.Time
				end, err = parseTime(e.EndTime)
				if err == nil {
					out = append(out, e.records(log, site, start, end)...)
					continue
				}
			}
			log.Error(types.IngestFailure{Record: site + " " + e.InfoURL, Err: err}, "Invalid calendar entry")
		}
	}
	return out
}

func (e CalendarEntry) records(log logr.Logger, site string, start, end time.Time) []types.DowntimeRecord {
	out := []types.DowntimeRecord{}
	for _, s := range e.Services {
		switch s.Type {
		case types.ServiceCE:
		case types.ServiceSRM:
			if !e.affects("SRM") && !e.affects("SRMv2") {
				log.V(1).Info("SRM not among affected services, skipping", "site", site, "endpoint", s.Endpoint)
				continue
			}
		default:
			continue
		}
		out = append(out, types.DowntimeRecord{
			Endpoint:       s.Endpoint,
			StartTime:      start,
			EndTime:        end,
			Description:    e.Description,
			Classification: e.Classification,
			Type:           s.Type,
			Site:           site,
			Name:           s.Name,
			InfoURL:        e.InfoURL,
			Severity:       e.Severity,
		})
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}
