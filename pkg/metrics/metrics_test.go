package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestCollectorCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RequestSubmitted()
	c.RequestCompleted(false)
	c.RequestCompleted(true)

	require.Equal(t, float64(1), counterValue(t, c.requestsSubmitted))
	require.Equal(t, float64(2), counterValue(t, c.requestsCompleted))
	require.Equal(t, float64(1), counterValue(t, c.requestsFailed))
}

func TestCollectorBackPressureLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.BackPressureEngaged()
	c.BackPressureEngaged()
	c.BackPressureReleased()

	engaged := counterValue(t, c.backPressureEvents.WithLabelValues("engaged"))
	released := counterValue(t, c.backPressureEvents.WithLabelValues("released"))
	require.Equal(t, float64(2), engaged)
	require.Equal(t, float64(1), released)
}

func TestRegisterOrReuseReturnsExistingCollectorOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	c1 := New(reg)
	c1.ConnectionOpened()

	c2 := New(reg) // second construction against the same registry must not panic
	require.Equal(t, float64(1), counterValue(t, c2.connectionsOpened), "must reuse the already-registered counter, not reset it")
}

func TestGaugesReportLatestValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.InFlightGauge(5)
	c.InFlightGauge(2)
	c.PendingOutputBytes(1024)
	c.SetRosterSize(10)

	m := &dto.Metric{}
	require.NoError(t, c.inFlightGauge.Write(m))
	require.Equal(t, float64(2), m.GetGauge().GetValue())
}
