package downtime

import (
	"time"

	"github.com/vshn/downtime-switcher/pkg/interval"
	"github.com/vshn/downtime-switcher/pkg/types"
)

// Downtime is a scheduled maintenance window of one endpoint.
// Values are never modified after creation.
type Downtime struct {
	Endpoint       string
	Interval       interval.Interval
	Description    string
	Classification string
	Severity       string
	Type           string
	Site           string
	Name           string
	InfoURL        string
}

func New(r types.DowntimeRecord) *Downtime {
	return &Downtime{
		Endpoint:       r.Endpoint,
		Interval:       interval.New(r.StartTime, r.EndTime),
		Description:    r.Description,
		Classification: r.Classification,
		Severity:       r.Severity,
		Type:           r.Type,
		Site:           r.Site,
		Name:           r.Name,
		InfoURL:        r.InfoURL,
	}
}

// Extend returns a copy whose interval starts d earlier.
func (d *Downtime) Extend(by time.Duration) *Downtime {
	c := *d
	c.Interval = d.Interval.Extend(by)
	return &c
}

func (d *Downtime) Overlap(o *Downtime) (interval.Interval, bool) {
	return d.Interval.Overlap(o.Interval)
}

// EndpointSet holds all downtimes of one endpoint in ingestion order.
type EndpointSet struct {
	endpoint  string
	downtimes []*Downtime
}

func NewEndpointSet(endpoint string) *EndpointSet {
	return &EndpointSet{endpoint: endpoint}
}

func (s *EndpointSet) Endpoint() string {
	return s.endpoint
}

func (s *EndpointSet) Add(d *Downtime) {
	s.downtimes = append(s.downtimes, d)
}

func (s *EndpointSet) Downtimes() []*Downtime {
	return s.downtimes
}

func (s *EndpointSet) Len() int {
	return len(s.downtimes)
}

// Extend returns a new set holding an extended copy of every member. The
// result describes when the endpoint has to be out of service rather than
// when the maintenance itself happens.
func (s *EndpointSet) Extend(by time.Duration) *EndpointSet {
	n := &EndpointSet{
		endpoint:  s.endpoint,
		downtimes: make([]*Downtime, 0, len(s.downtimes)),
	}
	for _, d := range s.downtimes {
		n.downtimes = append(n.downtimes, d.Extend(by))
	}
	return n
}
