// Package metrics exposes the application counters on a dedicated
// Prometheus registry so the default registry's Go runtime collectors
// don't drown out the handful of series this app actually owns.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	RemindersFired      prometheus.Counter
	RemindersDelivered  prometheus.Counter
	DeliveryFailures    prometheus.Counter
	DosesTaken          prometheus.Counter
	DosesSkipped        prometheus.Counter
	DosesMissed         prometheus.Counter
	DosesMaterialized   prometheus.Counter
	RefillAlerts        prometheus.Counter
	TriggerRegistrations prometheus.Gauge
	ActiveMedications   prometheus.Gauge
	SweepRuns           prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RemindersFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_reminders_fired_total",
			Help: "Reminder triggers fired",
		}),
		RemindersDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_reminders_delivered_total",
			Help: "Reminder messages delivered to a channel",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_delivery_failures_total",
			Help: "Reminder deliveries that failed all channels",
		}),
		DosesTaken: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_doses_taken_total",
			Help: "Doses marked taken",
		}),
		DosesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_doses_skipped_total",
			Help: "Doses marked skipped",
		}),
		DosesMissed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_doses_missed_total",
			Help: "Doses swept to missed",
		}),
		DosesMaterialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_doses_materialized_total",
			Help: "Ledger rows created by materialization",
		}),
		RefillAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_refill_alerts_total",
			Help: "Refill alerts emitted",
		}),
		TriggerRegistrations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dosetrack_trigger_registrations",
			Help: "Currently registered reminder triggers",
		}),
		ActiveMedications: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dosetrack_active_medications",
			Help: "Active medication records",
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "dosetrack_sweep_runs_total",
			Help: "Sweep loop iterations",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dosetrack_uptime_seconds",
		Help: "Time since process start",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// Registry returns the Prometheus registry backing the metrics, for the
// HTTP handler to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
