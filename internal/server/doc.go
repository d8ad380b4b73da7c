// Package server exposes the operational HTTP endpoints of the poller.
//
// MetricsServer listens on a dedicated address and serves:
//   - /metrics: Prometheus metrics, when the Prometheus exporter is enabled
//   - /healthz: liveness, always ok while the process runs
//   - /readyz: readiness, ok once a poll cycle has run and the poller has
//     not failed DefaultFailureThreshold cycles in a row
//   - /healthz/detailed: uptime, cycle count and the last cycle error
//
// HealthChecker is fed by the poll loop through RecordCycle.
package server
