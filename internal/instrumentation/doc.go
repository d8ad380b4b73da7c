// Package instrumentation provides OpenTelemetry instrumentation for the
// inboxforward poller.
//
// # Metrics
//
// Poll loop:
//   - poll_cycles_total: Counter of poll cycles by status
//   - poll_cycle_duration_seconds: Histogram of poll cycle durations
//   - messages_processed_total: Counter of handled messages by result
//     (delivered, failed, skipped, unlabeled)
//
// Chat delivery:
//   - delivery_attempts_total: Counter of send attempts by kind, ladder step and HTTP status
//   - delivery_attempt_duration_seconds: Histogram of send attempt durations
//   - delivery_outcomes_total: Counter of finished deliveries by kind, result and attempts used
//
// Google API:
//   - google_api_operations_total: Counter of Gmail API operations by operation and status
//   - google_api_operation_duration_seconds: Histogram of Gmail API operation durations
//   - circuit_breaker_transitions_total: Counter of breaker state changes
//
// # Tracing
//
// Spans are created for each poll cycle, each message, each Gmail API call
// (google.gmail.<operation>) and each chat send attempt (telegram.send_<kind>).
//
// # Audit log
//
// AuditLogger writes one record per handled message. Sender addresses are
// hashed and subjects omitted unless log.include_pii is set.
//
// # Configuration
//
// Config is filled from the telemetry section of the application
// configuration. The conventional variables still apply there:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: inboxforward)
//   - METRICS_DETAILED_LABELS: add sender domains to message metrics
//   - AUDIT_LOGGING_ENABLED
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:     "inboxforward",
//		Enabled:         true,
//		MetricsExporter: instrumentation.ExporterPrometheus,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordPollCycle(ctx, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
