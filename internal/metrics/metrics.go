package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	groupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merkle_funder_groups_total",
		Help: "Depository groups processed, by outcome.",
	}, []string{"chain", "status"})

	recipientsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merkle_funder_recipients_total",
		Help: "Funding rules simulated, by simulation result.",
	}, []string{"chain", "result"})

	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merkle_funder_transactions_total",
		Help: "Transactions submitted, by kind.",
	}, []string{"chain", "kind"})

	lastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "merkle_funder_last_run_timestamp_seconds",
		Help: "Unix time the last run of a chain finished.",
	}, []string{"chain"})
)

func GroupProcessed(chain, status string) {
	groupsTotal.WithLabelValues(chain, status).Inc()
}

// RecipientsSimulated records eligible and rejected counts of one simulation.
func RecipientsSimulated(chain string, eligible, rejected int) {
	recipientsTotal.WithLabelValues(chain, "eligible").Add(float64(eligible))
	recipientsTotal.WithLabelValues(chain, "rejected").Add(float64(rejected))
}

func TransactionSent(chain, kind string) {
	transactionsTotal.WithLabelValues(chain, kind).Inc()
}

func RunFinished(chain string, at time.Time) {
	lastRun.WithLabelValues(chain).Set(float64(at.Unix()))
}
