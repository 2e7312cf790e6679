package feed

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/policy"
	"github.com/vshn/downtime-switcher/pkg/topology"
)

// Sources holds the location of every feed, either a URL or a file path.
type Sources struct {
	Schedconfig    string
	DDMTopology    string
	SwitcherStatus string
	Sites          string
	Calendar       string
	ProbeState     string
}

// Snapshot is the content of all feeds fetched for one cycle.
type Snapshot struct {
	Schedconfig    Schedconfig
	DDMTopology    DDMTopology
	SwitcherStatus SwitcherStatus
	Sites          []SiteInfo
	Calendar       Calendar
	ProbeState     ProbeState
}

// Fetch loads all feeds. Every feed is mandatory; the first failure aborts
// with a ConfigurationFailure.
func Fetch(ctx context.Context, l *Loader, src Sources) (*Snapshot, error) {
	s := &Snapshot{}
	steps := []struct {
		source string
		into   any
	}{
		{src.Schedconfig, &s.Schedconfig},
		{src.DDMTopology, &s.DDMTopology},
		{src.SwitcherStatus, &s.SwitcherStatus},
		{src.Sites, &s.Sites},
		{src.Calendar, &s.Calendar},
		{src.ProbeState, &s.ProbeState},
	}
	for _, st := range steps {
		if err := l.Load(ctx, st.source, st.into); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Build creates the topology of all allowed ATLAS queues with their compute
// and storage endpoints, the observed switcher status and nucleus flags.
// Queues are added in lexical order of their names.
func (s *Snapshot) Build(log logr.Logger, p *policy.Policy, f Filter) *topology.Topology {
	t := topology.New(log, p)
	for _, name := range s.Schedconfig.Names() {
		qi := s.Schedconfig[name]
		l := log.WithValues("queue", name)
		switch {
		case qi.VO != "atlas":
			l.V(1).Info("Queue does not belong to ATLAS, skipping", "vo", qi.VO)
			continue
		case !f.Clouds.Contains(qi.Cloud):
			l.V(1).Info("Cloud is excluded, skipping", "cloud", qi.Cloud)
			continue
		case !f.Sites.Contains(qi.Site):
			l.V(1).Info("Site is excluded, skipping", "site", qi.Site)
			continue
		case !f.Queues.Contains(name):
			l.V(1).Info("Queue is excluded, skipping")
			continue
		}

		t.AddQueue(topology.Queue{
			Name:   name,
			Cloud:  qi.Cloud,
			Site:   qi.Site,
			Type:   qi.Type,
			Status: qi.Status,
			Token:  qi.Token(),
		})
		for _, ce := range qi.Queues {
			t.AddComputeEndpoint(name, ce.Endpoint, ce.Name, ce.State)
		}
		if tok := qi.Token(); tok != "" {
			if ep, ok := s.DDMTopology.Endpoint(tok); ok {
				t.AddStorageEndpoint(name, ep, tok)
			} else {
				l.V(1).Info("No storage endpoint for token", "token", tok)
			}
		}
	}

	for name, ps := range s.SwitcherStatus {
		v, ok := ps.Value()
		if !ok {
			continue
		}
		t.SetSwitcherStatus(name, v)
	}
	for _, si := range s.Sites {
		if si.Nucleus() && !t.SetNucleus(si.Name) {
			log.V(1).Info("Nucleus site is not in the topology", "site", si.Name)
		}
	}
	return t
}
