// Package metrics exposes Prometheus counters for the maintenance engine.
//
// Metrics:
//
//	maintenance_tasks_generated_total        tasks created by generator runs
//	maintenance_tasks_skipped_total          due plans skipped because they already had an open task
//	maintenance_generation_errors_total      per-plan generation failures
//	maintenance_deadlines_missed_total       shift-critical tasks created after their deadline
//	maintenance_generation_duration_seconds  generator run latency
//	maintenance_generation_last_run_seconds  unix time of the last finished run
//	maintenance_escalations_opened_total     escalations opened, by level
//	maintenance_escalations_unassigned_total escalations opened without a recipient
//	maintenance_escalation_transitions_total escalation transitions, by target status
//	maintenance_hours_readings_total         operating-hours readings, by outcome
//	maintenance_notifications_total          push notifications, by result
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the registered metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	tasksGenerated     prometheus.Counter
	tasksSkipped       prometheus.Counter
	generationErrors   prometheus.Counter
	deadlinesMissed    prometheus.Counter
	generationDuration prometheus.Histogram
	lastRun            prometheus.Gauge

	escalationsOpened     *prometheus.CounterVec
	escalationsUnassigned prometheus.Counter
	escalationTransitions *prometheus.CounterVec

	hoursReadings *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewCollector creates the collector and registers it with the default registerer.
func NewCollector() *Collector {
	c := &Collector{
		tasksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_tasks_generated_total",
			Help: "Total number of maintenance tasks created by the generator",
		}),
		tasksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_tasks_skipped_total",
			Help: "Total number of due plans skipped because an open task exists",
		}),
		generationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_generation_errors_total",
			Help: "Total number of per-plan generation failures",
		}),
		deadlinesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_deadlines_missed_total",
			Help: "Total number of shift-critical tasks generated after their deadline",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maintenance_generation_duration_seconds",
			Help:    "Duration of task generation runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maintenance_generation_last_run_seconds",
			Help: "Unix time of the last finished generation run",
		}),
		escalationsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_escalations_opened_total",
			Help: "Total number of escalations opened, by level",
		}, []string{"level"}),
		escalationsUnassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_escalations_unassigned_total",
			Help: "Total number of escalations opened without a matching recipient",
		}),
		escalationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_escalation_transitions_total",
			Help: "Total number of escalation status transitions, by target status",
		}, []string{"status"}),
		hoursReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_hours_readings_total",
			Help: "Total number of operating-hours readings, by outcome",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_notifications_total",
			Help: "Total number of escalation push notifications, by result",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		c.tasksGenerated,
		c.tasksSkipped,
		c.generationErrors,
		c.deadlinesMissed,
		c.generationDuration,
		c.lastRun,
		c.escalationsOpened,
		c.escalationsUnassigned,
		c.escalationTransitions,
		c.hoursReadings,
		c.notifications,
	)
	return c
}

// RecordGeneration records the outcome of one generator run.
func (c *Collector) RecordGeneration(created, skipped, errors, missed int, took time.Duration, finished time.Time) {
	if c == nil {
		return
	}
	c.tasksGenerated.Add(float64(created))
	c.tasksSkipped.Add(float64(skipped))
	c.generationErrors.Add(float64(errors))
	c.deadlinesMissed.Add(float64(missed))
	c.generationDuration.Observe(took.Seconds())
	c.lastRun.Set(float64(finished.Unix()))
}

// RecordEscalationOpened records a new escalation.
func (c *Collector) RecordEscalationOpened(level int, assigned bool) {
	if c == nil {
		return
	}
	c.escalationsOpened.WithLabelValues(strconv.Itoa(level)).Inc()
	if !assigned {
		c.escalationsUnassigned.Inc()
	}
}

// RecordEscalationTransition records a status change.
func (c *Collector) RecordEscalationTransition(status string) {
	if c == nil {
		return
	}
	c.escalationTransitions.WithLabelValues(status).Inc()
}

// RecordHoursReading records a reading outcome: applied, anomaly or rejected.
func (c *Collector) RecordHoursReading(outcome string) {
	if c == nil {
		return
	}
	c.hoursReadings.WithLabelValues(outcome).Inc()
}

// RecordNotification records a push delivery result: sent, failed or expired.
func (c *Collector) RecordNotification(result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(result).Inc()
}
