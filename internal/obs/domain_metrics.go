package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentOrderTotal counts provider order-creation outcomes.
	PaymentOrderTotal *prometheus.CounterVec
	// PaymentCaptureTotal counts provider capture/confirmation outcomes.
	PaymentCaptureTotal *prometheus.CounterVec
	// ProviderAuthTotal counts provider authentication outcomes, including token cache hits.
	ProviderAuthTotal *prometheus.CounterVec
	// ProviderCallLatency records outbound provider call latency in milliseconds.
	ProviderCallLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentOrderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_order_total",
			Help:      "Count of payment order creation outcomes.",
		}, []string{"provider", "result"})
		PaymentCaptureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_capture_total",
			Help:      "Count of payment capture outcomes.",
		}, []string{"provider", "result"})
		ProviderAuthTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_auth_total",
			Help:      "Count of provider authentication outcomes.",
		}, []string{"provider", "result"})
		ProviderCallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_ms",
			Help:      "Latency of outbound provider calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"provider", "operation"})

		mustRegisterCollector(reg, PaymentOrderTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentOrderTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentCaptureTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentCaptureTotal = v
			}
		})
		mustRegisterCollector(reg, ProviderAuthTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProviderAuthTotal = v
			}
		})
		mustRegisterCollector(reg, ProviderCallLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ProviderCallLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
