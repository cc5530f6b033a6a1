package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(entitlementDecisionsTotal) }

var entitlementDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "entitlement_decisions_total",
		Help: "Access decisions by result and bounded reason.",
	},
	// result: allow|deny
	// reason: admin|free|purchased|anonymous|not_purchased|error
	[]string{"result", "reason"},
)

func IncEntitlementDecision(allowed bool, reason string) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	entitlementDecisionsTotal.WithLabelValues(result, norm(reason)).Inc()
}
