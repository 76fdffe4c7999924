package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campo"

// Metrics holds the collectors exported by the API.
type Metrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	OrdersCreated   prometheus.Counter
	OrdersRejected  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Settlements     prometheus.Counter
	SettledProducts prometheus.Counter
	Ratings         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders persisted successfully.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Order creations rejected, by reason class.",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to"}),
		Settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "settlements_total",
			Help:      "Completed orders whose stock was settled.",
		}),
		SettledProducts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "settled_products_total",
			Help:      "Product stock decrements applied by settlement.",
		}),
		Ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "ratings_total",
			Help:      "Ratings recorded, by rated party.",
		}, []string{"rated"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.OrdersCreated, m.OrdersRejected, m.Transitions,
		m.Settlements, m.SettledProducts, m.Ratings,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// unmatchedRoute labels requests no chi route matched, keeping raw paths out
// of the label set.
const unmatchedRoute = "unmatched"

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// The order service calls these; a nil *Metrics records nothing.

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.OrdersCreated.Inc()
	}
}

func (m *Metrics) OrderRejected(reason string) {
	if m != nil {
		m.OrdersRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Transition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) Settled(products int) {
	if m != nil {
		m.Settlements.Inc()
		m.SettledProducts.Add(float64(products))
	}
}

func (m *Metrics) Rated(party string) {
	if m != nil {
		m.Ratings.WithLabelValues(party).Inc()
	}
}
