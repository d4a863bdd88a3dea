package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics records verification and licensing activity.
type APIMetrics struct {
	verifications *prometheus.CounterVec
	purchases     *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
}

// NewAPIMetrics registers the API metrics on the provided registerer.
func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	if reg == nil {
		return &APIMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_verification_attempts_total",
		Help: "Site verification attempts by method and outcome.",
	}, []string{"method", "outcome"})
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_purchases_total",
		Help: "License purchase attempts by outcome.",
	}, []string{"outcome"})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_check_cache_total",
		Help: "License check cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(verifications, purchases, cacheHits)
	return &APIMetrics{
		verifications: verifications,
		purchases:     purchases,
		cacheHits:     cacheHits,
	}
}

// ObserveVerification records a verification attempt outcome.
func (m *APIMetrics) ObserveVerification(method string, verified bool) {
	if m == nil || m.verifications == nil {
		return
	}
	outcome := "failed"
	if verified {
		outcome = "verified"
	}
	m.verifications.WithLabelValues(normalizeLabel(method), outcome).Inc()
}

// ObservePurchase records a purchase outcome.
func (m *APIMetrics) ObservePurchase(succeeded bool) {
	if m == nil || m.purchases == nil {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "completed"
	}
	m.purchases.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup records a license-check cache hit or miss.
func (m *APIMetrics) ObserveCacheLookup(hit bool) {
	if m == nil || m.cacheHits == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
