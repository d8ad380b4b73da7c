package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/inboxforward/internal/logging"
)

// Forward captures everything that happened to one inbox message during a
// poll cycle, for the audit trail.
//
// # Privacy Considerations
//
// Sender and Subject are PII. Unless the audit logger is configured with
// IncludePII, the sender is hashed and the subject is omitted.
type Forward struct {
	RunID     string
	MessageID string
	Sender    string
	Subject   string

	// Delivery details
	TextResult     string
	TextAttempts   int
	ImagesSent     int
	ImagesFailed   int
	Labeled        bool
	Skipped        bool
	ExtractFailure string

	StartTime time.Time
	Duration  time.Duration

	TraceID string
}

// NewForward creates a Forward with timing started.
// Call Complete() once the message has been handled.
func NewForward(runID, messageID string) *Forward {
	return &Forward{
		RunID:     runID,
		MessageID: messageID,
		StartTime: time.Now(),
	}
}

// WithHeaders sets the sender and subject.
func (f *Forward) WithHeaders(sender, subject string) *Forward {
	f.Sender = sender
	f.Subject = subject
	return f
}

// WithSpanContext extracts trace context from the current span.
func (f *Forward) WithSpanContext(ctx context.Context) *Forward {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		f.TraceID = span.SpanContext().TraceID().String()
	}
	return f
}

// Complete marks the record as finished and calculates duration.
func (f *Forward) Complete() *Forward {
	f.Duration = time.Since(f.StartTime)
	return f
}

// Failed reports whether any part of the delivery failed.
func (f *Forward) Failed() bool {
	return f.ExtractFailure != "" || f.ImagesFailed > 0 ||
		(f.TextResult != "" && f.TextResult != StatusSuccess)
}

// LogAttrs returns slog attributes for the record. Sender and subject are
// included verbatim only when includePII is set.
func (f *Forward) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String(logging.KeyRunID, f.RunID),
		logging.MessageID(f.MessageID),
		logging.Sender(f.Sender, includePII),
		slog.Duration(logging.KeyDuration, f.Duration),
		slog.Bool("labeled", f.Labeled),
	}

	if includePII && f.Subject != "" {
		attrs = append(attrs, slog.String("subject", f.Subject))
	}
	if f.Skipped {
		attrs = append(attrs, slog.Bool("skipped", true))
	}
	if f.TextResult != "" {
		attrs = append(attrs,
			slog.String("text_result", f.TextResult),
			slog.Int("text_attempts", f.TextAttempts),
		)
	}
	if f.ImagesSent > 0 || f.ImagesFailed > 0 {
		attrs = append(attrs,
			slog.Int("images_sent", f.ImagesSent),
			slog.Int("images_failed", f.ImagesFailed),
		)
	}
	if f.ExtractFailure != "" {
		attrs = append(attrs, slog.String("extract_error", f.ExtractFailure))
	}
	if f.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", f.TraceID))
	}

	return attrs
}

// AuditLogger writes one structured record per handled message.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogForward logs a completed Forward record. Failed deliveries are logged
// at warn level.
func (al *AuditLogger) LogForward(f *Forward) {
	if al == nil || !al.enabled {
		return
	}

	attrs := f.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	switch {
	case f.Skipped:
		al.logger.Info("message_skipped", args...)
	case f.Failed():
		al.logger.Warn("message_forward_failed", args...)
	default:
		al.logger.Info("message_forwarded", args...)
	}
}
