package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookingsCreated   prometheus.Counter
	bookingsCancelled prometheus.Counter
	bookingRejections *prometheus.CounterVec
	checkIns          *prometheus.CounterVec
	reconciled        prometheus.Counter
	httpDuration      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightbooking",
			Name:      "bookings_created_total",
			Help:      "Bookings persisted.",
		}),
		bookingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightbooking",
			Name:      "bookings_cancelled_total",
			Help:      "Bookings moved to CANCELLED.",
		}),
		bookingRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightbooking",
			Name:      "booking_rejections_total",
			Help:      "Booking requests rejected, by reason.",
		}, []string{"reason"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightbooking",
			Name:      "checkins_total",
			Help:      "Check-in attempts, by outcome.",
		}, []string{"outcome"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightbooking",
			Name:      "checkins_reconciled_total",
			Help:      "Embedded booking tickets brought in line with their canonical ticket.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flightbooking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.bookingsCreated, m.bookingsCancelled, m.bookingRejections, m.checkIns, m.reconciled, m.httpDuration)
	return m
}

func (m *Metrics) BookingCreated() {
	if m != nil {
		m.bookingsCreated.Inc()
	}
}

func (m *Metrics) BookingCancelled() {
	if m != nil {
		m.bookingsCancelled.Inc()
	}
}

func (m *Metrics) BookingRejected(reason string) {
	if m != nil {
		m.bookingRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CheckIn(outcome string) {
	if m != nil {
		m.checkIns.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Reconciled(n int) {
	if m != nil {
		m.reconciled.Add(float64(n))
	}
}

// Middleware records request latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}
