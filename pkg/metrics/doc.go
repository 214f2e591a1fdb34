/*
Package metrics provides Prometheus metrics collection and health/readiness
HTTP handlers for the service updater.

Metrics are registered at package init with prometheus.MustRegister and
exposed via Handler() for scraping. The updater registry instruments
ChecksTotal, PackagesAppliedTotal, InstallFailuresTotal,
ElectionsStartedTotal, WorkersRespawnedTotal, WorkersActive, GroupsTotal, and
TickDuration directly as it drives each service group's state machine — see
pkg/updater.

HealthChecker tracks named components (e.g. "registry", "gossip", "census")
registered via RegisterComponent/UpdateComponent; HealthHandler, ReadyHandler,
and LivenessHandler expose the aggregate status over HTTP for use as
Kubernetes-style liveness/readiness probes on cmd/svcupdater's metrics
listener.
*/
package metrics
