package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"carecal/internal/events"
)

var (
	once sync.Once

	aggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "aggregation_runs_total",
			Help:      "Count of calendar aggregation passes by outcome.",
		},
		[]string{"outcome"},
	)

	sourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "aggregation_source_failures_total",
			Help:      "Count of degraded aggregation sources.",
		},
		[]string{"source"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "booking_created_total",
			Help:      "Count of visit bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "booking_cancelled_total",
			Help:      "Count of visit bookings cancelled.",
		},
	)

	bookingFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "booking_failed_total",
			Help:      "Count of failed booking mutations by failure kind.",
		},
		[]string{"kind"},
	)

	availabilityResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carecal",
			Name:      "availability_resolutions_total",
			Help:      "Count of per-slot availability resolutions.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			aggregationRuns,
			sourceFailures,
			bookingCreated,
			bookingCancelled,
			bookingFailed,
			availabilityResolved,
		)
	})
}

func IncAggregation(outcome string) {
	aggregationRuns.WithLabelValues(outcome).Inc()
}

func IncSourceFailure(source string) {
	sourceFailures.WithLabelValues(source).Inc()
}

// BindBus subscribes the booking lifecycle counters to the event bus.
// The engine publishes one event per successful mutation, so counting
// at the bus keeps the counters in one place regardless of which code
// path performed the mutation.
func BindBus(bus *events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, func(events.Event) {
		bookingCreated.Inc()
	})
	bus.Subscribe(events.TypeBookingCancelled, func(events.Event) {
		bookingCancelled.Inc()
	})
}

func IncBookingFailed(kind string) {
	bookingFailed.WithLabelValues(kind).Inc()
}

func IncAvailabilityResolved() {
	availabilityResolved.Inc()
}
