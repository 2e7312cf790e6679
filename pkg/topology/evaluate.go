package topology

import (
	"time"

	"github.com/vshn/downtime-switcher/pkg/downtime"
	"github.com/vshn/downtime-switcher/pkg/interval"
	"github.com/vshn/downtime-switcher/pkg/policy"
)

// Evaluate computes the Events of every endpoint and queue. It does not
// perform any I/O and replaces the Events of a previous evaluation, so
// calling it twice with the same now yields the same decisions.
func (t *Topology) Evaluate(now time.Time) {
	for _, e := range t.Endpoints() {
		e.event = nil
		if e.Kind == policy.Compute {
			e.event = t.evaluateEndpoint(e, now)
		}
	}
	for _, q := range t.Queues() {
		q.event = t.evaluateQueue(q, now)
	}
}

// due reports whether an action with the given lead time must already be in
// place for iv.
func due(iv interval.Interval, now time.Time, lead time.Duration) bool {
	return iv.Contains(now.Add(lead)) || iv.Elapsed(now)
}

func (t *Topology) evaluateEndpoint(e *Endpoint, now time.Time) *Event {
	log := t.log.WithValues("endpoint", e.ID)
	if e.State != StateActive && e.State != StateInactive {
		log.V(1).Info("Endpoint state is managed elsewhere, leaving it alone", "state", e.State)
		return nil
	}

	ev := &Event{
		EntityType: EntityCE,
		UID:        e.UID(),
		OldStatus:  e.State,
		NewStatus:  StateActive,
		Comment:    comment(StateActive),
	}
	for _, d := range e.downtimes.Downtimes() {
		if due(d.Interval, now, t.policy.ComputeDisableLeadTime()) {
			ev.NewStatus = StateInactive
			ev.Comment = comment(StateInactive, d.InfoURL)
			ev.Downtime = d
			break
		}
	}
	log.V(1).Info("Evaluated endpoint", "old", ev.OldStatus, "new", ev.NewStatus)
	return ev
}

type check struct {
	kind   policy.ResourceKind
	action policy.Action
	groups downtime.OverlapGroupList
}

func (t *Topology) evaluateQueue(q *Queue, now time.Time) *Event {
	log := t.log.WithValues("queue", q.Name)

	compute := make([]*downtime.EndpointSet, 0, len(q.ComputeIDs))
	for _, id := range q.ComputeIDs {
		compute = append(compute, t.endpoints[id].downtimes.Extend(t.policy.ComputeDisableLeadTime()))
	}
	storage := make([]*downtime.EndpointSet, 0, len(q.StorageIDs))
	for _, id := range q.StorageIDs {
		storage = append(storage, t.endpoints[id].downtimes)
	}
	computeGroups := downtime.Reduce(compute)
	storageGroups := downtime.Reduce(storage)

	checks := []check{
		{policy.Compute, policy.SetOffline, computeGroups},
		{policy.Storage, policy.SetOffline, storageGroups},
		{policy.Compute, policy.SetBrokeroff, computeGroups},
		{policy.Storage, policy.SetBrokeroff, storageGroups},
	}

	ev := &Event{
		EntityType: EntityQueue,
		UID:        q.Name,
		OldStatus:  q.SwitcherStatus,
		NewStatus:  StatusOnline,
		Comment:    comment(StatusOnline),
	}
	class := policy.ClassOf(q.Type)
	for _, c := range checks {
		g := t.firstDue(q, c, class, now)
		if g == nil {
			continue
		}
		ev.NewStatus = string(c.action)
		ev.Comment = comment(ev.NewStatus, g.InfoURLs()...)
		ev.Group = g
		break
	}

	if ev.StatusChanged() && !TransitionAllowed(ev.OldStatus, ev.NewStatus) {
		log.Info("Status was not set by the switcher, doing nothing", "old", ev.OldStatus, "new", ev.NewStatus)
		return nil
	}
	log.V(1).Info("Evaluated queue", "old", ev.OldStatus, "new", ev.NewStatus)
	return ev
}

// firstDue returns the first group in list order for which the check's action
// is due. Groups shorter than the too-short threshold never count.
func (t *Topology) firstDue(q *Queue, c check, class policy.QueueClass, now time.Time) *downtime.OverlapGroup {
	for _, g := range c.groups {
		iv, ok := g.Interval()
		if !ok {
			continue
		}
		bucket := t.policy.Classify(iv)
		if bucket == policy.TooShort {
			continue
		}
		lead, ok := t.policy.LeadTime(c.kind, c.action, class, bucket)
		if !ok {
			t.log.V(1).Info("No lead time configured, no action", "queue", q.Name,
				"kind", c.kind, "action", c.action, "class", class, "bucket", bucket)
			continue
		}
		if due(iv, now, lead) {
			return g
		}
	}
	return nil
}
