package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucetgw_operations_total",
			Help: "Faucet operations by kind and result",
		},
		[]string{"op", "result"}, // create|update|deposit|withdraw|payout|close , ok|error code
	)

	PayoutQuantity = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "faucetgw_payout_quantity_total",
			Help: "Units of quantity paid out",
		},
	)

	TokensPaidOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "faucetgw_tokens_paid_out_total",
			Help: "Tokens moved from custody to requesters",
		},
	)

	FeesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "faucetgw_fees_collected_total",
			Help: "Fee-asset units moved from requesters to beneficiaries",
		},
	)

	HistoryRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucetgw_history_rows_total",
			Help: "Payout events handled by the history worker",
		},
		[]string{"result"}, // written|failed|skipped
	)

	HistoryLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "faucetgw_history_consumer_lag",
			Help: "Payout events not yet read by the history worker",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			OperationsTotal,
			PayoutQuantity,
			TokensPaidOut,
			FeesCollected,
			HistoryRowsTotal,
			HistoryLag,
		)
	})
}
