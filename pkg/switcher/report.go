package switcher

import (
	"strings"
	"time"

	"github.com/vshn/downtime-switcher/pkg/topology"
)

const noAction = "no_action"

var actionColors = map[string]string{
	topology.StatusOnline:    "green",
	topology.StatusOffline:   "red",
	topology.StatusBrokeroff: "brown",
	noAction:                 "green",
}

var statusColors = map[string]string{
	topology.StatusOnline:    "green",
	topology.StatusOffline:   "red",
	topology.StatusBrokeroff: "brown",
	"test":                   "yellow",
}

// Report is the outcome of one cycle as published on the status board.
type Report struct {
	Cycle       string       `json:"cycle"`
	Time        time.Time    `json:"time"`
	ProbeActive bool         `json:"probe_active"`
	Downtimes   int          `json:"downtimes"`
	Changed     int          `json:"changed"`
	Failures    []string     `json:"failures,omitempty"`
	Board       []BoardEntry `json:"board"`
	Changes     []Change     `json:"changes"`
}

type BoardEntry struct {
	Cloud       string `json:"cloud"`
	Site        string `json:"site"`
	Queue       string `json:"queue"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	StatusColor string `json:"status_color"`
	Action      string `json:"action"`
	ActionColor string `json:"action_color"`
}

// Change is a status change that went through.
type Change struct {
	Cloud       string `json:"cloud"`
	Site        string `json:"site"`
	Queue       string `json:"queue"`
	Entity      string `json:"entity"`
	UID         string `json:"uid"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Comment     string `json:"comment"`
	FinalStatus string `json:"final_status,omitempty"`
}

// Board lists every queue of t in tree order with the decision taken for it.
func Board(t *topology.Topology) []BoardEntry {
	out := []BoardEntry{}
	for _, c := range t.Clouds() {
		for _, sid := range c.SiteIDs {
			s, _ := t.Site(sid)
			for _, qid := range s.QueueIDs {
				q, _ := t.Queue(qid)
				action, color := queueAction(q.Event())
				out = append(out, BoardEntry{
					Cloud:       c.Name,
					Site:        s.Name,
					Queue:       q.Name,
					Type:        q.Type,
					Status:      q.Status,
					StatusColor: colorOf(statusColors, q.Status),
					Action:      action,
					ActionColor: color,
				})
			}
		}
	}
	return out
}

// queueAction names the decision of a queue event, e.g. setonline or
// setoffline_scheduled, and the color it is shown in. Unscheduled downtimes
// get the dark variant of the color.
func queueAction(ev *topology.Event) (string, string) {
	if ev == nil || !ev.StatusChanged() {
		return noAction, colorOf(actionColors, noAction)
	}
	action := ev.NewStatus
	color := colorOf(actionColors, action)
	if action != topology.StatusOnline && ev.Group != nil && ev.Group.Len() > 0 {
		classification := strings.ToLower(ev.Group.Members()[0].Classification)
		action = action + "_" + classification
		if classification == "unscheduled" {
			color = "dark" + color
		}
	}
	return "set" + action, color
}

func colorOf(colors map[string]string, key string) string {
	if c, ok := colors[key]; ok {
		return c
	}
	return "grey"
}

// Changes flattens the collected events.
func Changes(clouds []topology.CloudEvents) []Change {
	out := []Change{}
	for _, c := range clouds {
		for _, s := range c.Sites {
			for _, q := range s.Queues {
				for _, e := range q.Events {
					out = append(out, Change{
						Cloud:       c.Cloud,
						Site:        s.Site,
						Queue:       q.Queue,
						Entity:      string(e.EntityType),
						UID:         e.UID,
						OldStatus:   e.OldStatus,
						NewStatus:   e.NewStatus,
						Comment:     e.Comment,
						FinalStatus: e.FinalStatus,
					})
				}
			}
		}
	}
	return out
}
