package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceGmail, OperationList)
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "google.gmail.list" {
		t.Errorf("expected span name 'google.gmail.list', got %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected status Ok, got %v", spans[0].Status().Code)
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[SpanAttrService] != ServiceGmail {
		t.Errorf("expected service attribute %q, got %q", ServiceGmail, attrs[SpanAttrService])
	}
	if attrs[SpanAttrOperation] != OperationList {
		t.Errorf("expected operation attribute %q, got %q", OperationList, attrs[SpanAttrOperation])
	}
}

func TestStartDeliverySpan(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartDeliverySpan(context.Background(), "text", "truncated")
	SetSpanError(span, errors.New("http 400"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "telegram.send_text" {
		t.Errorf("expected span name 'telegram.send_text', got %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected status Error, got %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected error to be recorded as an event")
	}
}

func TestSetSpanError_Nil(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "noop")
	SetSpanError(span, nil)
	span.End()

	if got := recorder.Ended()[0].Status().Code; got != codes.Unset {
		t.Errorf("expected status Unset for nil error, got %v", got)
	}
}

func TestGetTraceID(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace ID without span, got %q", id)
	}

	withRecorder(t)
	ctx, span := StartSpan(context.Background(), "with-span")
	defer span.End()

	if id := GetTraceID(ctx); len(id) != 32 {
		t.Errorf("expected 32 hex char trace ID, got %q", id)
	}
}
