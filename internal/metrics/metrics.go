package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the storefront collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cartMutations    *prometheus.CounterVec
	checkoutOutcomes *prometheus.CounterVec
	orderAPILatency  *prometheus.HistogramVec
	openTabs         prometheus.Gauge
}

// New registers the storefront metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation and result.",
	}, []string{"op", "result"})
	checkoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_outcomes_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})
	orderAPILatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_order_api_duration_seconds",
		Help:    "Latency of POST /api/orders calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	openTabs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_open_tabs",
		Help: "Tabs currently held by the registry.",
	})
	reg.MustRegister(cartMutations, checkoutOutcomes, orderAPILatency, openTabs)
	return &Metrics{
		cartMutations:    cartMutations,
		checkoutOutcomes: checkoutOutcomes,
		orderAPILatency:  orderAPILatency,
		openTabs:         openTabs,
	}
}

func (m *Metrics) CartMutation(op, result string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil || m.checkoutOutcomes == nil {
		return
	}
	m.checkoutOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveOrderAPI(result string, d time.Duration) {
	if m == nil || m.orderAPILatency == nil {
		return
	}
	m.orderAPILatency.WithLabelValues(normalizeLabel(result)).Observe(d.Seconds())
}

func (m *Metrics) SetOpenTabs(n int) {
	if m == nil || m.openTabs == nil {
		return
	}
	m.openTabs.Set(float64(n))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
