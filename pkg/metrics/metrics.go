package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "downtime_switcher"

var queueStatuses = []string{"online", "brokeroff", "offline", "unrecognized", "none"}

type Metrics struct {
	queueStatus *prometheus.GaugeVec
	actuations  *prometheus.CounterVec
	cycles      *prometheus.CounterVec
	lastCycle   prometheus.Gauge
	downtimes   prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queueStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_status",
			Help:      "Status of a queue after the last cycle (1 for the current status)",
		}, []string{"cloud", "site", "queue", "status"}),
		actuations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuations_total",
			Help:      "Status changes sent upstream",
		}, []string{"entity", "result"}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles run",
		}, []string{"result"}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Time the last successful cycle finished",
		}),
		downtimes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downtimes",
			Help:      "Downtimes attached to endpoints in the last cycle",
		}),
	}
}

// SetQueueStatus flags status as the current one of the queue.
func (m *Metrics) SetQueueStatus(cloud, site, queue, status string) {
	if status == "" {
		status = "none"
	}
	for _, s := range queueStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.queueStatus.WithLabelValues(cloud, site, queue, s).Set(v)
	}
}

// ResetQueues drops all queue series, e.g. before publishing a new topology.
func (m *Metrics) ResetQueues() {
	m.queueStatus.Reset()
}

func (m *Metrics) Actuation(entity string, err error) {
	m.actuations.WithLabelValues(entity, result(err)).Inc()
}

func (m *Metrics) Cycle(at time.Time, err error) {
	m.cycles.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.lastCycle.Set(float64(at.Unix()))
	}
}

func (m *Metrics) Downtimes(n int) {
	m.downtimes.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
