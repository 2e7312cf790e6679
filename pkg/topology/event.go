package topology

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vshn/downtime-switcher/pkg/downtime"
)

// Event records the status an entity should be in after evaluation.
type Event struct {
	EntityType EntityType
	UID        string
	OldStatus  string
	NewStatus  string
	Comment    string

	// Group justifies a queue decision, Downtime a compute endpoint decision.
	Group    *downtime.OverlapGroup
	Downtime *downtime.Downtime

	// Done is set once the status change went through.
	Done bool
	// FinalStatus is the status observed after actuation, queues only.
	FinalStatus string
}

func (e *Event) StatusChanged() bool {
	return e.OldStatus != e.NewStatus
}

// Overridden reports whether the status observed after actuation differs
// from the one we set, e.g. because of a manual setting upstream.
func (e *Event) Overridden() bool {
	return e.FinalStatus != "" && e.FinalStatus != e.NewStatus
}

func (e *Event) String() string {
	return fmt.Sprintf("%s %s: %q -> %q", e.EntityType, e.UID, e.OldStatus, e.NewStatus)
}

func comment(status string, infoURLs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "set.%s.by.Switcher", strings.ToLower(status))
	for _, u := range infoURLs {
		if u == "" {
			continue
		}
		b.WriteString("+")
		b.WriteString(escape(u))
	}
	return b.String()
}

// escape percent-encodes everything but unreserved characters.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

type QueueEvents struct {
	Queue  string
	Events []*Event
}

type SiteEvents struct {
	Site   string
	Queues []QueueEvents
}

type CloudEvents struct {
	Cloud string
	Sites []SiteEvents
}

// Changed flattens all events of the cloud.
func (c CloudEvents) Changed() []*Event {
	out := []*Event{}
	for _, s := range c.Sites {
		for _, q := range s.Queues {
			out = append(out, q.Events...)
		}
	}
	return out
}

func reportable(e *Event) bool {
	return e != nil && e.StatusChanged() && e.Done
}
