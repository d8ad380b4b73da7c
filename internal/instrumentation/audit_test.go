package instrumentation

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newJSONAuditLogger(buf *bytes.Buffer, config AuditConfig) *AuditLogger {
	return NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)), config)
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode log record %q: %v", buf.String(), err)
	}
	return rec
}

func TestAuditLogger_LogForward(t *testing.T) {
	tests := []struct {
		name      string
		forward   *Forward
		wantMsg   string
		wantLevel string
	}{
		{
			name:      "delivered",
			forward:   &Forward{MessageID: "m1", Sender: "a@example.com", TextResult: StatusSuccess, TextAttempts: 1, Labeled: true},
			wantMsg:   "message_forwarded",
			wantLevel: "INFO",
		},
		{
			name:      "text failed",
			forward:   &Forward{MessageID: "m2", Sender: "a@example.com", TextResult: StatusError, TextAttempts: 3, Labeled: true},
			wantMsg:   "message_forward_failed",
			wantLevel: "WARN",
		},
		{
			name:      "image failed",
			forward:   &Forward{MessageID: "m3", TextResult: StatusSuccess, ImagesSent: 1, ImagesFailed: 1},
			wantMsg:   "message_forward_failed",
			wantLevel: "WARN",
		},
		{
			name:      "extraction failed",
			forward:   &Forward{MessageID: "m4", ExtractFailure: "attachment fetch failed"},
			wantMsg:   "message_forward_failed",
			wantLevel: "WARN",
		},
		{
			name:      "skipped",
			forward:   &Forward{MessageID: "m5", Sender: "noreply@example.com", Skipped: true},
			wantMsg:   "message_skipped",
			wantLevel: "INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newJSONAuditLogger(&buf, AuditConfig{Enabled: true}).LogForward(tt.forward.Complete())

			rec := decodeRecord(t, &buf)
			if rec["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %q", rec["msg"], tt.wantMsg)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %q", rec["level"], tt.wantLevel)
			}
			if rec["message_id"] != tt.forward.MessageID {
				t.Errorf("message_id = %v, want %q", rec["message_id"], tt.forward.MessageID)
			}
		})
	}
}

func TestAuditLogger_PII(t *testing.T) {
	f := NewForward("run-1", "m1").WithHeaders("jane@example.com", "Quarterly numbers")
	f.TextResult = StatusSuccess
	f.Complete()

	var hashed bytes.Buffer
	newJSONAuditLogger(&hashed, AuditConfig{Enabled: true}).LogForward(f)
	if strings.Contains(hashed.String(), "jane@example.com") {
		t.Error("sender should be hashed without IncludePII")
	}
	if strings.Contains(hashed.String(), "Quarterly numbers") {
		t.Error("subject should be omitted without IncludePII")
	}

	var plain bytes.Buffer
	newJSONAuditLogger(&plain, AuditConfig{Enabled: true, IncludePII: true}).LogForward(f)
	rec := decodeRecord(t, &plain)
	if rec["sender"] != "jane@example.com" {
		t.Errorf("sender = %v, want raw address with IncludePII", rec["sender"])
	}
	if rec["subject"] != "Quarterly numbers" {
		t.Errorf("subject = %v, want subject with IncludePII", rec["subject"])
	}
	if rec["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want %q", rec["run_id"], "run-1")
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	newJSONAuditLogger(&buf, AuditConfig{Enabled: false}).LogForward(&Forward{MessageID: "m1"})
	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogForward(&Forward{MessageID: "m1"}) // should not panic
}

func TestForward_Failed(t *testing.T) {
	tests := []struct {
		name string
		f    Forward
		want bool
	}{
		{"nothing sent", Forward{}, false},
		{"text ok", Forward{TextResult: StatusSuccess}, false},
		{"text error", Forward{TextResult: StatusError}, true},
		{"image error", Forward{TextResult: StatusSuccess, ImagesFailed: 2}, true},
		{"extract error", Forward{ExtractFailure: "boom"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
