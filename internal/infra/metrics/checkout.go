package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		CheckoutRequests,
		PaymentReturns,
		PaymentNotifications,
		GatewayCallDuration,
	)
}

var (
	// result: created|resumed|entitled|not_configured|unauthenticated|not_found|error
	CheckoutRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Checkout attempts by result.",
		},
		[]string{"result"},
	)

	// outcome: success|cancelled|error|awaiting
	PaymentReturns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_returns_total",
			Help: "Browser return trips from the gateway by outcome.",
		},
		[]string{"outcome"},
	)

	// result: completed|failed|refunded|noop|bad_signature|mismatch|not_found|error
	PaymentNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_total",
			Help: "Server-to-server gateway notifications by result.",
		},
		[]string{"result"},
	)

	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_seconds",
			Help:    "Duration of outbound calls to the payment gateway.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)
)

func IncCheckout(result string) {
	CheckoutRequests.WithLabelValues(norm(result)).Inc()
}

func IncPaymentReturn(outcome string) {
	PaymentReturns.WithLabelValues(norm(outcome)).Inc()
}

func IncPaymentNotification(result string) {
	PaymentNotifications.WithLabelValues(norm(result)).Inc()
}

func ObserveGatewayCall(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "fail"
	}
	GatewayCallDuration.WithLabelValues(norm(op), result).Observe(time.Since(start).Seconds())
}
