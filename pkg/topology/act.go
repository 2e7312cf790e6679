package topology

import (
	"context"

	"github.com/vshn/downtime-switcher/pkg/types"
)

// Actuator changes the status of an entity in the system of record.
type Actuator interface {
	ChangeStatus(ctx context.Context, entity EntityType, uid, status, comment string) error
}

type ActResult struct {
	Changed  int
	Failures []error
}

// Act sends every pending status change to a, walking the tree cloud by
// cloud with the compute endpoints of a queue before the queue itself. An
// endpoint shared by several queues is handled once. Failures are logged and
// collected; they never stop the walk.
func (t *Topology) Act(ctx context.Context, a Actuator) ActResult {
	res := ActResult{}
	visited := map[string]bool{}
	for _, q := range t.treeQueues() {
		for _, id := range q.ComputeIDs {
			if visited[id] {
				continue
			}
			visited[id] = true
			e := t.endpoints[id]
			t.act(ctx, a, e, &res)
		}
		t.act(ctx, a, q, &res)
	}
	return res
}

func (t *Topology) act(ctx context.Context, a Actuator, entity Actuatable, res *ActResult) {
	ev := entity.PendingEvent()
	if ev == nil || ev.Done || !ev.StatusChanged() {
		return
	}
	log := t.log.WithValues("entity", ev.EntityType, "uid", ev.UID)
	log.Info("Changing status", "old", ev.OldStatus, "new", ev.NewStatus, "comment", ev.Comment)
	if err := a.ChangeStatus(ctx, ev.EntityType, ev.UID, ev.NewStatus, ev.Comment); err != nil {
		failure := types.ActuationFailure{EntityType: string(ev.EntityType), UID: ev.UID, Status: ev.NewStatus, Err: err}
		log.Error(failure, "Failed to change status")
		res.Failures = append(res.Failures, failure)
		return
	}
	ev.Done = true
	entity.SetStatus(ev.NewStatus)
	res.Changed++
}

// treeQueues lists the queues cloud by cloud and site by site.
func (t *Topology) treeQueues() []*Queue {
	out := make([]*Queue, 0, len(t.queueIDs))
	for _, cid := range t.cloudIDs {
		for _, sid := range t.clouds[cid].SiteIDs {
			for _, qid := range t.sites[sid].QueueIDs {
				out = append(out, t.queues[qid])
			}
		}
	}
	return out
}

// CollectEvents gathers the Events of changes that went through, grouped by
// cloud, site and queue. Each queue lists its own Event first, then those of
// its compute endpoints. Empty queues, sites and clouds are left out.
func (t *Topology) CollectEvents() []CloudEvents {
	out := []CloudEvents{}
	for _, cid := range t.cloudIDs {
		ce := CloudEvents{Cloud: cid}
		for _, sid := range t.clouds[cid].SiteIDs {
			se := SiteEvents{Site: sid}
			for _, qid := range t.sites[sid].QueueIDs {
				q := t.queues[qid]
				qe := QueueEvents{Queue: qid}
				if reportable(q.event) {
					qe.Events = append(qe.Events, q.event)
				}
				for _, id := range q.ComputeIDs {
					if e := t.endpoints[id].event; reportable(e) {
						qe.Events = append(qe.Events, e)
					}
				}
				if len(qe.Events) > 0 {
					se.Queues = append(se.Queues, qe)
				}
			}
			if len(se.Queues) > 0 {
				ce.Sites = append(ce.Sites, se)
			}
		}
		if len(ce.Sites) > 0 {
			out = append(out, ce)
		}
	}
	return out
}

// Reconcile records the queue statuses observed after actuation on the
// queue Events. statuses maps queue names to the status published upstream.
func (t *Topology) Reconcile(statuses map[string]string) {
	for _, q := range t.Queues() {
		if q.event == nil {
			continue
		}
		if s, ok := statuses[q.Name]; ok {
			q.event.FinalStatus = s
		}
	}
}
