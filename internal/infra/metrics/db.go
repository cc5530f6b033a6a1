package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns) }

var dbPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_connections",
		Help: "Connections held by the purchase-ledger pool, labeled by state.",
	},
	[]string{"state"}, // 'total', 'idle', 'acquired'
)

func SetDBPoolStats(total, idle, acquired int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}
