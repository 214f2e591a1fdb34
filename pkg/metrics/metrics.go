package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts tick invocations by service group and resulting outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcupdater_checks_total",
			Help: "Total number of tick invocations by service group and outcome",
		},
		[]string{"service_group", "outcome"},
	)

	// PackagesAppliedTotal counts packages applied via the launcher collaborator.
	PackagesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcupdater_packages_applied_total",
			Help: "Total number of packages applied, by service group",
		},
		[]string{"service_group"},
	)

	// InstallFailuresTotal counts installer failures observed by Workers.
	InstallFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcupdater_install_failures_total",
			Help: "Total number of failed install attempts by service group and mission",
		},
		[]string{"service_group", "mission"},
	)

	// ElectionsStartedTotal counts update elections triggered on the gossip collaborator.
	ElectionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcupdater_elections_started_total",
			Help: "Total number of update elections started, by service group",
		},
		[]string{"service_group"},
	)

	// WorkersRespawnedTotal counts Worker respawns after an unexpected channel close.
	WorkersRespawnedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcupdater_workers_respawned_total",
			Help: "Total number of times a Worker was respawned after dying unexpectedly",
		},
		[]string{"service_group"},
	)

	// WorkersActive gauges currently live background Workers.
	WorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "svcupdater_workers_active",
			Help: "Number of currently active background update Workers",
		},
	)

	// GroupsTotal gauges registered service groups by strategy and current state label.
	GroupsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "svcupdater_groups_total",
			Help: "Number of registered service groups by strategy and current state",
		},
		[]string{"strategy", "state"},
	)

	// TickDuration observes the wall time spent advancing one service group by one tick.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "svcupdater_tick_duration_seconds",
			Help:    "Time taken to advance one service group's state machine by tick",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		PackagesAppliedTotal,
		InstallFailuresTotal,
		ElectionsStartedTotal,
		WorkersRespawnedTotal,
		WorkersActive,
		GroupsTotal,
		TickDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall time and reports it to histograms.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration reports the elapsed time to a plain histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec reports the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time without recording it anywhere.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
