package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrStatus     = "status"
	attrOperation  = "operation"
	attrService    = "service"
	attrResult     = "result"
	attrKind       = "kind"
	attrStep       = "step"
	attrHTTPStatus = "http_status"
	attrAttempts   = "attempts"
	attrBreaker    = "breaker"
	attrFrom       = "from"
	attrTo         = "to"
	attrDomain     = "sender_domain"
)

// Metrics provides methods for recording observability metrics.
// A nil *Metrics or a zero Metrics is a valid no-op recorder.
type Metrics struct {
	// Poll loop metrics
	pollCyclesTotal   metric.Int64Counter
	pollCycleDuration metric.Float64Histogram
	messagesTotal     metric.Int64Counter

	// Chat delivery metrics
	deliveryAttemptsTotal metric.Int64Counter
	deliveryDuration      metric.Float64Histogram
	deliveryOutcomesTotal metric.Int64Counter

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
	breakerTransitionsTotal    metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.pollCyclesTotal, err = meter.Int64Counter(
		"poll_cycles_total",
		metric.WithDescription("Total number of inbox poll cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_cycles_total counter: %w", err)
	}

	m.pollCycleDuration, err = meter.Float64Histogram(
		"poll_cycle_duration_seconds",
		metric.WithDescription("Duration of a full inbox poll cycle in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_cycle_duration_seconds histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"messages_processed_total",
		metric.WithDescription("Total number of inbox messages handled, by result"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_processed_total counter: %w", err)
	}

	m.deliveryAttemptsTotal, err = meter.Int64Counter(
		"delivery_attempts_total",
		metric.WithDescription("Total number of chat send attempts by kind, ladder step and HTTP status"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery_attempts_total counter: %w", err)
	}

	m.deliveryDuration, err = meter.Float64Histogram(
		"delivery_attempt_duration_seconds",
		metric.WithDescription("Chat send attempt duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery_attempt_duration_seconds histogram: %w", err)
	}

	m.deliveryOutcomesTotal, err = meter.Int64Counter(
		"delivery_outcomes_total",
		metric.WithDescription("Total number of completed deliveries by kind, result and attempts used"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery_outcomes_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.breakerTransitionsTotal, err = meter.Int64Counter(
		"circuit_breaker_transitions_total",
		metric.WithDescription("Total number of circuit breaker state changes"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit_breaker_transitions_total counter: %w", err)
	}

	return m, nil
}

// RecordPollCycle records a finished poll cycle.
// Status should be one of: "success", "error"
func (m *Metrics) RecordPollCycle(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.pollCyclesTotal == nil || m.pollCycleDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.pollCyclesTotal.Add(ctx, 1, attrs)
	m.pollCycleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMessage records how a single inbox message was handled.
//
// Parameters:
//   - result: one of the MessageResult* constants
//   - sender: raw From header; only its domain is recorded, and only with detailed labels
func (m *Metrics) RecordMessage(ctx context.Context, result, sender string) {
	if m == nil || m.messagesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && sender != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractSenderDomain(sender)))
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDeliveryAttempt records one chat send attempt.
//
// Parameters:
//   - kind: "text" or "image"
//   - step: retry ladder step ("original", "truncated", "fallback", or "single" for images)
//   - statusCode: HTTP status, 0 when no response was received
//   - duration: Time taken for the request
func (m *Metrics) RecordDeliveryAttempt(ctx context.Context, kind, step string, statusCode int, duration time.Duration) {
	if m == nil || m.deliveryAttemptsTotal == nil || m.deliveryDuration == nil {
		return // Instrumentation not initialized
	}

	m.deliveryAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStep, step),
		attribute.String(attrHTTPStatus, strconv.Itoa(statusCode)),
	))
	m.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrKind, kind),
	))
}

// RecordDeliveryOutcome records the final result of a delivery.
func (m *Metrics) RecordDeliveryOutcome(ctx context.Context, kind, result string, attempts int) {
	if m == nil || m.deliveryOutcomesTotal == nil {
		return // Instrumentation not initialized
	}

	m.deliveryOutcomesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrResult, result),
		attribute.String(attrAttempts, strconv.Itoa(attempts)),
	))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail)
//   - operation: Operation type (list, get, modify, etc.)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBreakerTransition records a circuit breaker moving between states.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil || m.breakerTransitionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.breakerTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrBreaker, name),
		attribute.String(attrFrom, from),
		attribute.String(attrTo, to),
	))
}
