package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking and discharge
	BookingsTotal       *prometheus.CounterVec
	SlotConflicts       prometheus.Counter
	UploadFailures      prometheus.Counter
	DischargesTotal     *prometheus.CounterVec
	BookingLatency      prometheus.Histogram
	AppointmentStatuses *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil registerer leaves them unregistered, which is what tests want.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		SlotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was already taken",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_failures_total",
			Help:      "Bookings aborted because a medical file failed to upload",
		}),
		DischargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "discharges_total",
			Help:      "Discharge attempts by last completed step",
		}, []string{"result"}),
		BookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_duration_seconds",
			Help:      "Time from booking request to appointment write",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		AppointmentStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"status"}),

		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_queue_size",
			Help:      "Current number of events in the outbox queue",
		}),
		OutboxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "status"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BookingsTotal,
			m.SlotConflicts,
			m.UploadFailures,
			m.DischargesTotal,
			m.BookingLatency,
			m.AppointmentStatuses,
			m.OutboxEventsProcessed,
			m.OutboxEventsFailed,
			m.OutboxProcessingLatency,
			m.OutboxQueueSize,
			m.OutboxRetries,
			m.StoreOperations,
			m.StoreLatency,
		)
	}
	return m
}

// New returns unregistered metrics under namespace.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, "", nil)
}
