package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vshn/downtime-switcher/pkg/interval"
	"github.com/vshn/downtime-switcher/pkg/types"
)

type ResourceKind string

const (
	Compute ResourceKind = "compute"
	Storage ResourceKind = "storage"
)

type Action string

const (
	SetBrokeroff Action = "brokeroff"
	SetOffline   Action = "offline"
)

type QueueClass string

const (
	Analysis   QueueClass = "analysis"
	Production QueueClass = "production"
	Other      QueueClass = "other"
)

// ClassOf maps a queue type to the class used for lead time lookups.
func ClassOf(queueType string) QueueClass {
	switch QueueClass(queueType) {
	case Analysis, Production:
		return QueueClass(queueType)
	}
	return Other
}

type Bucket string

const (
	TooShort Bucket = "tooshort"
	Short    Bucket = "short"
	Long     Bucket = "long"
)

// LeadTimes holds how long before a window of the given length the action
// must already be in place. A nil entry disables the action.
type LeadTimes struct {
	Short *time.Duration `yaml:"short"`
	Long  *time.Duration `yaml:"long"`
}

// Config is the on-disk form of the policy.
//
//	computeDisableLeadTime: 3h
//	tooShortThreshold: 1h
//	shortThreshold: 5h
//	leadTimes:
//	  compute:
//	    offline:
//	      production: {short: 6h, long: 24h}
type Config struct {
	ComputeDisableLeadTime time.Duration                                      `yaml:"computeDisableLeadTime"`
	TooShortThreshold      time.Duration                                      `yaml:"tooShortThreshold"`
	ShortThreshold         time.Duration                                      `yaml:"shortThreshold"`
	LeadTimes              map[ResourceKind]map[Action]map[QueueClass]LeadTimes `yaml:"leadTimes"`
}

type Policy struct {
	computeDisable time.Duration
	tooShort       time.Duration
	short          time.Duration
	leadTimes      map[ResourceKind]map[Action]map[QueueClass]LeadTimes
}

func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.ConfigurationFailure{Source: path, Err: err}
	}
	p, err := Parse(data)
	if err != nil {
		return nil, types.ConfigurationFailure{Source: path, Err: err}
	}
	return p, nil
}

func Parse(data []byte) (*Policy, error) {
	cfg := Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse policy: %w", err)
	}
	return New(cfg)
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &Policy{
		computeDisable: cfg.ComputeDisableLeadTime,
		tooShort:       cfg.TooShortThreshold,
		short:          cfg.ShortThreshold,
		leadTimes:      cfg.LeadTimes,
	}, nil
}

func (c Config) validate() error {
	if c.ComputeDisableLeadTime <= 0 {
		return errors.New("computeDisableLeadTime must be set")
	}
	if c.TooShortThreshold <= 0 || c.ShortThreshold <= 0 {
		return errors.New("tooShortThreshold and shortThreshold must be set")
	}
	if c.TooShortThreshold >= c.ShortThreshold {
		return errors.New("tooShortThreshold must be below shortThreshold")
	}
	if len(c.LeadTimes) == 0 {
		return errors.New("leadTimes must not be empty")
	}
	for kind, actions := range c.LeadTimes {
		if kind != Compute && kind != Storage {
			return fmt.Errorf("unknown resource kind %q", kind)
		}
		for action, classes := range actions {
			if action != SetBrokeroff && action != SetOffline {
				return fmt.Errorf("unknown action %q for %s", action, kind)
			}
			for class, lt := range classes {
				if class != Analysis && class != Production && class != Other {
					return fmt.Errorf("unknown queue class %q for %s/%s", class, kind, action)
				}
				if (lt.Short != nil && *lt.Short < 0) || (lt.Long != nil && *lt.Long < 0) {
					return fmt.Errorf("negative lead time for %s/%s/%s", kind, action, class)
				}
			}
		}
	}
	return nil
}

// ComputeDisableLeadTime is how long before a downtime a compute endpoint is
// disabled, and how far compute downtimes are extended for queue decisions.
func (p *Policy) ComputeDisableLeadTime() time.Duration {
	return p.computeDisable
}

// Classify puts a window into one of the duration buckets.
func (p *Policy) Classify(iv interval.Interval) Bucket {
	switch {
	case iv.ShorterThan(p.tooShort):
		return TooShort
	case iv.ShorterThan(p.short):
		return Short
	}
	return Long
}

// LeadTime looks up the lead time for the given combination. ok is false
// when the table has no value, meaning the action is not taken.
func (p *Policy) LeadTime(kind ResourceKind, action Action, class QueueClass, bucket Bucket) (time.Duration, bool) {
	lt, ok := p.leadTimes[kind][action][class]
	if !ok {
		return 0, false
	}
	var v *time.Duration
	switch bucket {
	case Short:
		v = lt.Short
	case Long:
		v = lt.Long
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}
