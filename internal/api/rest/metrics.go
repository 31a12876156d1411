package rest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seccore_http_requests_total",
		Help: "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seccore_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	eventsAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seccore_events_analyzed_total",
		Help: "Security events run through the threat analyzer.",
	})

	indicatorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seccore_threat_indicators_total",
		Help: "Threat indicators emitted, by severity.",
	}, []string{"severity"})

	auditEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seccore_audit_events_total",
		Help: "Audit events recorded, by risk level.",
	}, []string{"risk_level"})

	complianceChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seccore_compliance_checks_total",
		Help: "Compliance checks evaluated, by status.",
	}, []string{"status"})
)
