// README: Prometheus collectors for booking transitions, offers, ratings and notification delivery.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homefix"

var (
	once sync.Once

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Count of committed booking status transitions.",
		},
		[]string{"from", "to"},
	)

	offersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_submitted_total",
			Help:      "Count of technician offers by outcome (created or updated).",
		},
		[]string{"kind"},
	)

	ratingsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_submitted_total",
			Help:      "Count of accepted ratings.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of notification deliveries by result.",
		},
		[]string{"result"},
	)

	staleRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_requests",
			Help:      "Bookings still waiting for offers past the configured age.",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingTransitions,
			offersSubmitted,
			ratingsSubmitted,
			notifications,
			staleRequests,
			httpDuration,
		)
	})
}

func IncTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	bookingTransitions.WithLabelValues(from, to).Inc()
}

func IncOffer(created bool) {
	kind := "updated"
	if created {
		kind = "created"
	}
	offersSubmitted.WithLabelValues(kind).Inc()
}

func IncRating() {
	ratingsSubmitted.Inc()
}

// Notification results.
const (
	NotifyDelivered = "delivered"
	NotifyDropped   = "dropped"
	NotifyFailed    = "failed"
)

func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

func SetStaleRequests(n int) {
	staleRequests.Set(float64(n))
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
