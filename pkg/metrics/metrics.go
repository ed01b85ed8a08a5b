package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	ChecksRun = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carve_checks_run_total",
			Help: "Total number of probe executions by check and outcome",
		},
		[]string{"check", "outcome"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carve_probe_duration_seconds",
			Help:    "Probe execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carve_scheduler_ticks_total",
			Help: "Total number of scheduler ticks by check",
		},
		[]string{"check"},
	)

	ResolutionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carve_dns_resolution_failures_total",
			Help: "Total number of box hostname resolution failures by check",
		},
		[]string{"check"},
	)

	// Competition metrics
	CompetitionStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carve_competition_status",
			Help: "Competition lifecycle status (0 unstarted, 1 active, 2 finished)",
		},
		[]string{"competition"},
	)

	// Overlay metrics
	FDBEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carve_fdb_entries_total",
			Help: "Live forwarding-database entries by overlay domain",
		},
		[]string{"domain"},
	)
)

func init() {
	prometheus.MustRegister(ChecksRun)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(ResolutionFailures)
	prometheus.MustRegister(CompetitionStatus)
	prometheus.MustRegister(FDBEntriesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
