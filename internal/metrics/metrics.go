package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_sessions_started_total",
			Help: "Sessions that reached the handshake phase",
		},
		[]string{"role"},
	)
	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_sessions_ended_total",
			Help: "Sessions that reached Disconnected, by end reason",
		},
		[]string{"role", "reason"},
	)
	RoundsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_rounds_settled_total",
			Help: "Rounds settled, by winner label",
		},
		[]string{"role", "winner"},
	)
	ProtocolViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_protocol_violations_total",
			Help: "Malformed or out-of-sequence envelopes received",
		},
		[]string{"role"},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(SessionsEnded)
	prometheus.MustRegister(RoundsSettled)
	prometheus.MustRegister(ProtocolViolations)
	prometheus.MustRegister(RLRequests)
	prometheus.MustRegister(RLBlocked)
}
