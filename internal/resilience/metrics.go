package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors for the outbound store API client, labelled by breaker target.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kitstore_shop",
		Name:      "client_breaker_state",
		Help:      "Breaker state per target (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kitstore_shop",
		Name:      "client_breaker_transitions_total",
		Help:      "Breaker state changes per target.",
	}, []string{"target", "from", "to"})

	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kitstore_shop",
		Name:      "client_retries_total",
		Help:      "Store API reads sent again after a transport error or 5xx.",
	}, []string{"target"})
)

// RegisterMetrics registers the breaker and retry collectors. Registering twice
// is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, RetryAttempts} {
		var are prometheus.AlreadyRegisteredError
		if err := reg.Register(c); err != nil && !errors.As(err, &are) {
			return err
		}
	}
	return nil
}
