package types

import "fmt"

// ConfigurationFailure means an input the cycle cannot run without was
// missing or malformed: the policy file or one of the mandatory feeds.
type ConfigurationFailure struct {
	Source string
	Err    error
}

func (e ConfigurationFailure) Error() string {
	return fmt.Sprintf("failure reading configuration from %s: %s", e.Source, e.Err)
}

func (e ConfigurationFailure) Unwrap() error {
	return e.Err
}

// ActuationFailure is returned when the status of an entity could not be changed.
type ActuationFailure struct {
	EntityType string
	UID        string
	Status     string
	Err        error
}

func (e ActuationFailure) Error() string {
	return fmt.Sprintf("failure setting %s %s to %s: %s", e.EntityType, e.UID, e.Status, e.Err)
}

func (e ActuationFailure) Unwrap() error {
	return e.Err
}

// IngestFailure marks a single unusable downtime record.
type IngestFailure struct {
	Record string
	Err    error
}

func (e IngestFailure) Error() string {
	return fmt.Sprintf("skipping downtime record %s: %s", e.Record, e.Err)
}

func (e IngestFailure) Unwrap() error {
	return e.Err
}
