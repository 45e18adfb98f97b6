package app

import (
	"strconv"
	"sync"
	"time"

	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	txsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loanpool",
			Subsystem: "app",
			Name:      "txs_total",
			Help:      "Executed transactions by type and result code.",
		},
		[]string{"type", "code"},
	)
	loanEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loanpool",
			Subsystem: "app",
			Name:      "events_total",
			Help:      "Loan pool events emitted by finalized blocks.",
		},
		[]string{"event"},
	)
	milestonePaidAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loanpool",
			Subsystem: "escrow",
			Name:      "paid_amount_total",
			Help:      "Sum of milestone payouts.",
		},
	)
	finalizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "loanpool",
			Subsystem: "app",
			Name:      "finalize_block_duration_seconds",
			Help:      "FinalizeBlock duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	escrowReserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loanpool",
			Subsystem: "escrow",
			Name:      "reserved",
			Help:      "Pool balance held in custody for approved loans.",
		},
	)
	committedHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loanpool",
			Subsystem: "app",
			Name:      "committed_height",
			Help:      "Height of the last committed state.",
		},
	)
)

// RegisterMetrics adds the app collectors to the default registry, which the
// node's instrumentation endpoint serves.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(txsExecuted, loanEvents, milestonePaidAmount, escrowReserved, finalizeDuration, committedHeight)
	})
}

func recordTx(t tx.LoanTxType, res *abcitypes.ExecTxResult) {
	txsExecuted.WithLabelValues(t.String(), strconv.FormatUint(uint64(res.Code), 10)).Inc()
	for _, ev := range res.Events {
		recordEvent(ev)
	}
}

func recordEvent(ev abcitypes.Event) {
	loanEvents.WithLabelValues(ev.Type).Inc()
	if ev.Type != types.EventMilestonePaidType {
		return
	}
	decoded, err := types.DecodeEvent(ev)
	if err != nil {
		return
	}
	if m, ok := decoded.(*types.EventMilestone); ok {
		milestonePaidAmount.Add(float64(m.Amount))
	}
}

func recordCommit(st *state.State) {
	committedHeight.Set(float64(st.Header().Height))
	pool, err := st.GetAccount(loanpool.PoolAccount())
	if err == nil && pool != nil {
		escrowReserved.Set(float64(pool.Reserved))
	}
}

func recordFinalize(start time.Time) {
	finalizeDuration.Observe(time.Since(start).Seconds())
}
