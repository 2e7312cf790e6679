package downtime

import (
	"slices"

	"github.com/vshn/downtime-switcher/pkg/interval"
)

// OverlapGroup is a set of downtimes whose intervals all intersect.
// Its interval is the intersection of all members and only ever narrows.
type OverlapGroup struct {
	members  []*Downtime
	interval interval.Interval
}

// NewOverlapGroup builds a group by adding the downtimes in order.
func NewOverlapGroup(ds ...*Downtime) *OverlapGroup {
	g := &OverlapGroup{}
	for _, d := range ds {
		g.Add(d)
	}
	return g
}

// Add appends d if it intersects the current interval and reports whether
// it was accepted. The first downtime of an empty group is always accepted.
// Rejected downtimes are not reconsidered later, so the outcome depends on
// insertion order.
func (g *OverlapGroup) Add(d *Downtime) bool {
	if len(g.members) == 0 {
		g.members = append(g.members, d)
		g.interval = d.Interval
		return true
	}
	iv, ok := g.interval.Overlap(d.Interval)
	if !ok {
		return false
	}
	g.members = append(g.members, d)
	g.interval = iv
	return true
}

// Overlaps reports whether d intersects the group interval.
func (g *OverlapGroup) Overlaps(d *Downtime) bool {
	if len(g.members) == 0 {
		return true
	}
	_, ok := g.interval.Overlap(d.Interval)
	return ok
}

// Interval returns the combined window. ok is false for an empty group.
func (g *OverlapGroup) Interval() (iv interval.Interval, ok bool) {
	return g.interval, len(g.members) > 0
}

func (g *OverlapGroup) Members() []*Downtime {
	return g.members
}

func (g *OverlapGroup) Len() int {
	return len(g.members)
}

// InfoURLs lists the distinct informational URLs in member order.
func (g *OverlapGroup) InfoURLs() []string {
	urls := []string{}
	for _, d := range g.members {
		if !slices.Contains(urls, d.InfoURL) {
			urls = append(urls, d.InfoURL)
		}
	}
	return urls
}

func (g *OverlapGroup) clone() *OverlapGroup {
	return &OverlapGroup{
		members:  slices.Clone(g.members),
		interval: g.interval,
	}
}

// OverlapGroupList is an ordered list of overlap groups.
type OverlapGroupList []*OverlapGroup

// Overlap crosses every group with every downtime of set. Each overlapping
// pair yields a copy of the group extended by that downtime; the receiver is
// not modified.
func (l OverlapGroupList) Overlap(set *EndpointSet) OverlapGroupList {
	out := OverlapGroupList{}
	for _, g := range l {
		for _, d := range set.Downtimes() {
			if !g.Overlaps(d) {
				continue
			}
			n := g.clone()
			n.Add(d)
			out = append(out, n)
		}
	}
	return out
}

// Concat appends other to l without any deduplication.
func (l OverlapGroupList) Concat(other OverlapGroupList) OverlapGroupList {
	out := make(OverlapGroupList, 0, len(l)+len(other))
	out = append(out, l...)
	return append(out, other...)
}

// Reduce folds the downtime sets of all endpoints of one kind belonging to a
// parent entity into overlap groups. The fold runs left to right over sets,
// which callers pass in topology insertion order.
func Reduce(sets []*EndpointSet) OverlapGroupList {
	if len(sets) == 0 {
		return OverlapGroupList{}
	}
	out := OverlapGroupList{}
	for _, d := range sets[0].Downtimes() {
		out = append(out, NewOverlapGroup(d))
	}
	for _, s := range sets[1:] {
		out = out.Overlap(s)
	}
	return out
}
