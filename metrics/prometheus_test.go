package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	rec.IncCounter(PaymentsTotal, map[string]string{"network": "eip155:8453"})
	rec.IncCounter(PaymentsTotal, map[string]string{"network": "eip155:8453"})
	rec.IncCounter(BlockedTotal, nil)
	rec.ObserveLatency(NegotiationLatency, 250*time.Millisecond, map[string]string{"network": "eip155:8453"})

	expected := `
# HELP x402_client_events_total x402 client outcome counters
# TYPE x402_client_events_total counter
x402_client_events_total{network="",type="blocked"} 1
x402_client_events_total{network="eip155:8453",type="payments"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "x402_client_events_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.histogram))
}

func TestPrometheusRecorder_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
