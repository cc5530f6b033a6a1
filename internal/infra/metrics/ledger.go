package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesTotal,
		purchasesRevenueTotal,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Applied ledger transitions (pending/completed/failed/refunded).",
		},
		[]string{"transition"},
	)

	purchasesRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_revenue_total",
			Help: "Minor-unit value of completed purchases, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPurchase(transition string) {
	purchasesTotal.WithLabelValues(norm(transition)).Inc()
}

func AddPurchaseRevenue(currency string, amount int64) {
	if amount <= 0 {
		return
	}
	purchasesRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
