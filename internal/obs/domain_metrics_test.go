package obs

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDomainMetricsRegistration(t *testing.T) {
	MustRegisterDomainMetrics("bookstore", prometheus.NewRegistry())
	require.NotNil(t, PricingQuotesTotal)
	require.NotNil(t, PricingFallbackTotal)

	ObserveUpstream("membership", nil, 15*time.Millisecond)
	ObserveUpstream("membership", errors.New("boom"), 30*time.Millisecond)
	require.Equal(t, 2, testutil.CollectAndCount(UpstreamLatency))

	PricingFallbackTotal.WithLabelValues("discounts").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(PricingFallbackTotal.WithLabelValues("discounts")))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 20}, ParseBucketsCSV("5, x, -1, 20"))
	require.Nil(t, ParseBucketsCSV("  "))
}
