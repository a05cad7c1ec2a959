package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	GroupProcessed("test", "submitted")
	GroupProcessed("test", "submitted")
	require.Equal(t, float64(2), testutil.ToFloat64(groupsTotal.WithLabelValues("test", "submitted")))

	RecipientsSimulated("test", 3, 1)
	require.Equal(t, float64(3), testutil.ToFloat64(recipientsTotal.WithLabelValues("test", "eligible")))
	require.Equal(t, float64(1), testutil.ToFloat64(recipientsTotal.WithLabelValues("test", "rejected")))

	TransactionSent("test", "fund")
	require.Equal(t, float64(1), testutil.ToFloat64(transactionsTotal.WithLabelValues("test", "fund")))

	at := time.Unix(1700000000, 0)
	RunFinished("test", at)
	require.Equal(t, float64(1700000000), testutil.ToFloat64(lastRun.WithLabelValues("test")))
}
