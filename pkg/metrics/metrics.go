package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	EnrollmentIngestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "enrollment_ingestions_total", Help: "Enrollment submissions by result (ok, bad_request, unauthorized)."},
		[]string{"result"},
	)
	BadgeGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "badge_grants_total", Help: "Badge grant attempts by outcome (created, duplicate, error)."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(EnrollmentIngestions)
	reg.MustRegister(BadgeGrants)
}
