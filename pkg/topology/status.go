package topology

import "strings"

type EntityType string

const (
	EntityQueue EntityType = "Queue"
	EntityCE    EntityType = "CE"
)

// Queue statuses.
const (
	StatusNone         = ""
	StatusOnline       = "online"
	StatusBrokeroff    = "brokeroff"
	StatusOffline      = "offline"
	StatusUnrecognized = "unrecognized"
)

// Compute endpoint states.
const (
	StateActive   = "ACTIVE"
	StateInactive = "INACTIVE"
)

// NormalizeQueueStatus lower-cases a status reported by the status feed and
// maps everything outside the known vocabulary to StatusUnrecognized.
func NormalizeQueueStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case StatusOnline, StatusBrokeroff, StatusOffline:
		return s
	}
	return StatusUnrecognized
}

// TransitionAllowed refuses to bring a queue online when its previous status
// was not set by us, so holds placed by someone else are never cleared.
func TransitionAllowed(from, to string) bool {
	if to != StatusOnline {
		return true
	}
	return from != StatusNone && from != StatusUnrecognized
}
