package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcilerRunsTotal, reconciledPurchasesTotal) }

var (
	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Pending-purchase reconciliation sweeps, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'error', 'skipped'
	)

	reconciledPurchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciled_purchases_total",
			Help: "Pending purchases examined by the reconciler, labeled by outcome.",
		},
		[]string{"outcome"}, // 'completed', 'failed', 'unchanged', 'error'
	)
)

func IncReconcilerRun(result string) {
	reconcilerRunsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconciled(outcome string) {
	reconciledPurchasesTotal.WithLabelValues(norm(outcome)).Inc()
}
