package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes.
const (
	OutcomeCommitted    = "committed"
	OutcomeRejected     = "rejected"
	OutcomeUnavailable  = "unavailable"
	OutcomePrecondition = "precondition"
	OutcomeInProgress   = "in_progress"
	OutcomeReplayed     = "replayed"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	submitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_order_submit_duration_seconds",
			Help:    "Time spent waiting for the order service",
			Buckets: prometheus.DefBuckets,
		},
	)

	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_cart_mutations_total",
			Help: "Cart, binding and payment edits by operation",
		},
		[]string{"op"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	customerSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_customer_searches_total",
			Help: "Customer directory lookups by result",
		},
		[]string{"result"},
	)
)

// Recorder is what the service layer reports to. Tests use Nop.
type Recorder interface {
	Checkout(outcome string)
	SubmitDuration(d time.Duration)
	CartMutation(op string)
	SessionOpened()
	SessionClosed()
	CustomerSearch(result string)
}

// Prometheus records to the process-wide collectors.
type Prometheus struct{}

func (Prometheus) Checkout(outcome string)        { checkouts.WithLabelValues(outcome).Inc() }
func (Prometheus) SubmitDuration(d time.Duration) { submitDuration.Observe(d.Seconds()) }
func (Prometheus) CartMutation(op string)         { cartMutations.WithLabelValues(op).Inc() }
func (Prometheus) SessionOpened()                 { activeSessions.Inc() }
func (Prometheus) SessionClosed()                 { activeSessions.Dec() }
func (Prometheus) CustomerSearch(result string)   { customerSearches.WithLabelValues(result).Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) Checkout(string)              {}
func (Nop) SubmitDuration(time.Duration) {}
func (Nop) CartMutation(string)          {}
func (Nop) SessionOpened()               {}
func (Nop) SessionClosed()               {}
func (Nop) CustomerSearch(string)        {}
