package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC/USD", "BUY", "filled"))
	OrdersTotal.WithLabelValues("BTC/USD", "BUY", "filled").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC/USD", "BUY", "filled")))

	Exposure.Set(4.5)
	assert.Equal(t, 4.5, testutil.ToFloat64(Exposure))

	assert.Positive(t, testutil.CollectAndCount(TicksTotal.WithLabelValues("IDLE")))
}
