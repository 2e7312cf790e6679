package topology

import (
	"slices"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/downtime"
	"github.com/vshn/downtime-switcher/pkg/policy"
	"github.com/vshn/downtime-switcher/pkg/types"
)

type Cloud struct {
	Name    string
	SiteIDs []string
}

type Site struct {
	Name     string
	Cloud    string
	Nucleus  bool
	QueueIDs []string
}

type Queue struct {
	Name  string
	Cloud string
	Site  string
	Type  string
	// Status is the queue status as published by the topology feed.
	Status string
	// SwitcherStatus is the status last set through the switcher probe, or
	// StatusNone when the status feed does not know the queue.
	SwitcherStatus string
	Token          string

	ComputeIDs []string
	StorageIDs []string

	event *Event
}

func (q *Queue) Event() *Event {
	return q.event
}

func (q *Queue) PendingEvent() *Event {
	return q.event
}

func (q *Queue) SetStatus(status string) {
	q.Status = status
	q.SwitcherStatus = status
}

// Endpoint is a compute or storage endpoint. Entities are shared between
// queues and identified by their endpoint string.
type Endpoint struct {
	ID    string
	Name  string
	Kind  policy.ResourceKind
	State string
	Token string

	downtimes *downtime.EndpointSet
	event     *Event
}

// UID is the identifier used towards the actuator.
func (e *Endpoint) UID() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

func (e *Endpoint) Downtimes() *downtime.EndpointSet {
	return e.downtimes
}

func (e *Endpoint) Event() *Event {
	return e.event
}

func (e *Endpoint) PendingEvent() *Event {
	return e.event
}

func (e *Endpoint) SetStatus(status string) {
	e.State = status
}

// Actuatable is an entity whose status can be changed through an Actuator.
type Actuatable interface {
	PendingEvent() *Event
	SetStatus(status string)
}

// Topology is the entity store of one evaluation cycle. All relations are
// kept as IDs and resolved through the store; iteration follows insertion
// order.
type Topology struct {
	log    logr.Logger
	policy *policy.Policy

	clouds      map[string]*Cloud
	cloudIDs    []string
	sites       map[string]*Site
	siteIDs     []string
	queues      map[string]*Queue
	queueIDs    []string
	endpoints   map[string]*Endpoint
	endpointIDs []string
}

func New(log logr.Logger, p *policy.Policy) *Topology {
	return &Topology{
		log:       log,
		policy:    p,
		clouds:    map[string]*Cloud{},
		sites:     map[string]*Site{},
		queues:    map[string]*Queue{},
		endpoints: map[string]*Endpoint{},
	}
}

func (t *Topology) cloud(name string) *Cloud {
	c, ok := t.clouds[name]
	if !ok {
		c = &Cloud{Name: name}
		t.clouds[name] = c
		t.cloudIDs = append(t.cloudIDs, name)
	}
	return c
}

func (t *Topology) site(cloud, name string) *Site {
	s, ok := t.sites[name]
	if !ok {
		s = &Site{Name: name, Cloud: cloud}
		t.sites[name] = s
		t.siteIDs = append(t.siteIDs, name)
	}
	c := t.cloud(cloud)
	c.SiteIDs = appendUnique(c.SiteIDs, name)
	return s
}

func (t *Topology) endpoint(id string, kind policy.ResourceKind) *Endpoint {
	e, ok := t.endpoints[id]
	if !ok {
		e = &Endpoint{ID: id, Kind: kind, downtimes: downtime.NewEndpointSet(id)}
		t.endpoints[id] = e
		t.endpointIDs = append(t.endpointIDs, id)
	}
	return e
}

// AddQueue registers q under its cloud and site. Adding a queue name twice
// returns the already registered queue.
func (t *Topology) AddQueue(q Queue) *Queue {
	if existing, ok := t.queues[q.Name]; ok {
		return existing
	}
	n := &Queue{
		Name:           q.Name,
		Cloud:          q.Cloud,
		Site:           q.Site,
		Type:           q.Type,
		Status:         q.Status,
		SwitcherStatus: q.SwitcherStatus,
		Token:          q.Token,
	}
	t.queues[n.Name] = n
	t.queueIDs = append(t.queueIDs, n.Name)
	s := t.site(n.Cloud, n.Site)
	s.QueueIDs = appendUnique(s.QueueIDs, n.Name)
	return n
}

// AddComputeEndpoint attaches a compute endpoint to a queue. The endpoint's
// name and state are taken from the last registration.
func (t *Topology) AddComputeEndpoint(queue, id, name, state string) *Endpoint {
	e := t.endpoint(id, policy.Compute)
	e.Name = name
	e.State = state
	if q, ok := t.queues[queue]; ok {
		q.ComputeIDs = appendUnique(q.ComputeIDs, id)
	}
	return e
}

func (t *Topology) AddStorageEndpoint(queue, id, token string) *Endpoint {
	e := t.endpoint(id, policy.Storage)
	e.Token = token
	if q, ok := t.queues[queue]; ok {
		q.StorageIDs = appendUnique(q.StorageIDs, id)
	}
	return e
}

// SetSwitcherStatus records the observed status of a queue. It reports false
// when the queue is not part of the topology.
func (t *Topology) SetSwitcherStatus(queue, status string) bool {
	q, ok := t.queues[queue]
	if !ok {
		return false
	}
	q.SwitcherStatus = NormalizeQueueStatus(status)
	return true
}

func (t *Topology) SetNucleus(site string) bool {
	s, ok := t.sites[site]
	if !ok {
		return false
	}
	s.Nucleus = true
	return true
}

// AttachDowntimes adds every downtime to the endpoint it belongs to and
// returns how many were attached. Downtimes of endpoints outside the
// topology are skipped.
func (t *Topology) AttachDowntimes(ds []*downtime.Downtime) int {
	n := 0
	for _, d := range ds {
		kind := policy.Compute
		if d.Type == types.ServiceSRM {
			kind = policy.Storage
		}
		e, ok := t.endpoints[d.Endpoint]
		if !ok || e.Kind != kind {
			t.log.V(1).Info("Endpoint is not in the topology, skipping downtime", "endpoint", d.Endpoint, "type", d.Type)
			continue
		}
		e.downtimes.Add(d)
		n++
	}
	return n
}

func (t *Topology) Clouds() []*Cloud {
	out := make([]*Cloud, 0, len(t.cloudIDs))
	for _, id := range t.cloudIDs {
		out = append(out, t.clouds[id])
	}
	return out
}

func (t *Topology) Sites() []*Site {
	out := make([]*Site, 0, len(t.siteIDs))
	for _, id := range t.siteIDs {
		out = append(out, t.sites[id])
	}
	return out
}

func (t *Topology) Queues() []*Queue {
	out := make([]*Queue, 0, len(t.queueIDs))
	for _, id := range t.queueIDs {
		out = append(out, t.queues[id])
	}
	return out
}

func (t *Topology) Endpoints() []*Endpoint {
	out := make([]*Endpoint, 0, len(t.endpointIDs))
	for _, id := range t.endpointIDs {
		out = append(out, t.endpoints[id])
	}
	return out
}

func (t *Topology) Queue(name string) (*Queue, bool) {
	q, ok := t.queues[name]
	return q, ok
}

func (t *Topology) Site(name string) (*Site, bool) {
	s, ok := t.sites[name]
	return s, ok
}

func (t *Topology) Endpoint(id string) (*Endpoint, bool) {
	e, ok := t.endpoints[id]
	return e, ok
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
