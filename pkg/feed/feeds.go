package feed

import (
	"maps"
	"slices"
	"strings"
)

// Schedconfig is the topology feed keyed by queue name.
type Schedconfig map[string]QueueInfo

type QueueInfo struct {
	Cloud         string        `json:"cloud"`
	Site          string        `json:"atlas_site"`
	PandaResource string        `json:"panda_resource"`
	Type          string        `json:"type"`
	Status        string        `json:"status"`
	VO            string        `json:"vo_name"`
	Storages      StorageTokens `json:"astorages"`
	Queues        []CEInfo      `json:"queues"`
}

type StorageTokens struct {
	WriteLAN []string `json:"write_lan"`
}

type CEInfo struct {
	Name     string `json:"ce_name"`
	Endpoint string `json:"ce_endpoint"`
	State    string `json:"ce_state"`
}

// Token is the space token used to find the queue's storage endpoint.
func (q QueueInfo) Token() string {
	if len(q.Storages.WriteLAN) == 0 {
		return ""
	}
	return q.Storages.WriteLAN[0]
}

// Names returns the queue names in lexical order.
func (s Schedconfig) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// Statuses maps every queue to its published status.
func (s Schedconfig) Statuses() map[string]string {
	out := make(map[string]string, len(s))
	for name, q := range s {
		out[name] = q.Status
	}
	return out
}

// DDMTopology is the storage topology feed keyed by space token.
type DDMTopology map[string]DDMEndpoint

type DDMEndpoint struct {
	ARProtocols map[string][]Protocol `json:"arprotocols"`
}

type Protocol struct {
	Endpoint string `json:"endpoint"`
}

// Endpoint returns the write endpoint of token, preferring LAN over WAN.
func (d DDMTopology) Endpoint(token string) (string, bool) {
	ep, ok := d[token]
	if !ok {
		return "", false
	}
	for _, key := range []string{"write_lan", "write_wan"} {
		if ps := ep.ARProtocols[key]; len(ps) > 0 && ps[0].Endpoint != "" {
			return ps[0].Endpoint, true
		}
	}
	return "", false
}

// SwitcherStatus is the per queue probe status feed.
//
//	{"QUEUE": {"a": {"mode": {"AUTO": {"switcher": {"value": "ONLINE"}}}}}}
type SwitcherStatus map[string]ProbeStatus

type ProbeStatus struct {
	A struct {
		Mode map[string]map[string]ProbeValue `json:"mode"`
	} `json:"a"`
}

type ProbeValue struct {
	Value string `json:"value"`
}

// Value returns the status set through the switcher probe. Modes are
// consulted in lexical order and the last one carrying a value wins.
func (p ProbeStatus) Value() (string, bool) {
	value, found := "", false
	for _, mode := range slices.Sorted(maps.Keys(p.A.Mode)) {
		if v, ok := p.A.Mode[mode]["switcher"]; ok {
			value, found = v.Value, true
		}
	}
	return value, found
}

type SiteInfo struct {
	Name         string   `json:"name"`
	DataPolicies []string `json:"datapolicies"`
}

func (s SiteInfo) Nucleus() bool {
	return slices.Contains(s.DataPolicies, "Nucleus")
}

type ProbeState struct {
	Switcher struct {
		State string `json:"state"`
	} `json:"switcher"`
}

// Active reports whether upstream honours status changes made by the probe.
func (p ProbeState) Active() bool {
	return strings.EqualFold(p.Switcher.State, "active")
}

// Allowed decides whether an entity is part of the run. Exclusion wins over
// an allow list, an empty allow list allows everything.
type Allowed struct {
	Allow   []string
	Exclude []string
}

func (a Allowed) Contains(name string) bool {
	if slices.Contains(a.Exclude, name) {
		return false
	}
	return len(a.Allow) == 0 || slices.Contains(a.Allow, name)
}

type Filter struct {
	Clouds Allowed
	Sites  Allowed
	Queues Allowed
}
