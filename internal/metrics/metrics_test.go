package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CartMutation("update", "rejected")
	m.CartMutation("Update ", "REJECTED")
	m.CheckoutOutcome("")
	m.ObserveOrderAPI("ok", 20*time.Millisecond)
	m.SetOpenTabs(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("update", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutOutcomes.WithLabelValues("unknown")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openTabs))
	assert.Equal(t, 1, testutil.CollectAndCount(m.orderAPILatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CartMutation("add", "ok")
		m.CheckoutOutcome("submitted")
		m.ObserveOrderAPI("error", time.Second)
		m.SetOpenTabs(1)
	})

	empty := New(nil)
	assert.NotPanics(t, func() { empty.CartMutation("add", "ok") })
}
