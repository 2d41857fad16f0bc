package obs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartStorageFailures counts cart persistence problems by operation (restore, persist).
	CartStorageFailures *prometheus.CounterVec
	// CheckoutSubmissions counts checkout submission outcomes on the storefront.
	CheckoutSubmissions *prometheus.CounterVec
	// OrdersCreated counts order creation outcomes on the API.
	OrdersCreated *prometheus.CounterVec
	// OrderAmount records the final amount of created orders.
	OrderAmount prometheus.Histogram
	// AuthAttempts counts login and registration outcomes.
	AuthAttempts *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartStorageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_storage_failures_total",
			Help:      "Count of cart storage failures by operation.",
		}, []string{"op"})
		CheckoutSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Count of checkout submissions by outcome.",
		}, []string{"result"})
		OrdersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of order creation requests by outcome.",
		}, []string{"result"})
		OrderAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_final_amount",
			Help:      "Final amount of created orders.",
			Buckets:   []float64{25, 50, 75, 100, 150, 250, 500},
		})
		AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Count of login and registration attempts by outcome.",
		}, []string{"action", "result"})

		registerOrReuse(reg, &CartStorageFailures)
		registerOrReuse(reg, &CheckoutSubmissions)
		registerOrReuse(reg, &OrdersCreated)
		registerOrReuse(reg, &OrderAmount)
		registerOrReuse(reg, &AuthAttempts)
	})
}

// CountCartStorageFailure increments the cart storage failure counter when registered.
func CountCartStorageFailure(op string) {
	if CartStorageFailures != nil {
		CartStorageFailures.WithLabelValues(op).Inc()
	}
}

// CountCheckoutSubmission increments the checkout outcome counter when registered.
func CountCheckoutSubmission(result string) {
	if CheckoutSubmissions != nil {
		CheckoutSubmissions.WithLabelValues(result).Inc()
	}
}

// registerOrReuse registers *c, or points *c at the collector already
// registered under the same descriptor.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c *C) {
	err := reg.Register(*c)
	if err == nil {
		return
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		panic(fmt.Errorf("register metric: %w", err))
	}
	if existing, ok := are.ExistingCollector.(C); ok {
		*c = existing
	}
}
