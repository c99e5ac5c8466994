package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	SubmissionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_created_total",
			Help: "Total number of submissions created by type",
		},
		[]string{"type"},
	)
	SubmissionsRejectedAtIntake = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_intake_rejections_total",
			Help: "Submission attempts refused before upload, by reason",
		},
		[]string{"reason"},
	)
	SubmissionStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_status_changes_total",
			Help: "Submission status transitions by new status and source",
		},
		[]string{"status", "source"},
	)
	AgenciesProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agencies_provisioned_total",
			Help: "Total number of agencies provisioned by status",
		},
		[]string{"status"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agency_provisioning_duration_seconds",
			Help:    "Duration of agency provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 1, 10), // 0 to 10 seconds
		},
	)
	CascadeDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_deletes_total",
			Help: "Dependency-ordered deletes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Operational alerts raised, by message",
		},
		[]string{"alert"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

func InitMetrics() {
	collectors := map[string]prometheus.Collector{
		"SubmissionsCreated":          SubmissionsCreated,
		"SubmissionsRejectedAtIntake": SubmissionsRejectedAtIntake,
		"SubmissionStatusChanges":     SubmissionStatusChanges,
		"AgenciesProvisioned":         AgenciesProvisioned,
		"ProvisioningDuration":        ProvisioningDuration,
		"CascadeDeletes":              CascadeDeletes,
		"AlertsRaised":                AlertsRaised,
		"RequestDuration":             RequestDuration,
	}
	for name, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
}
