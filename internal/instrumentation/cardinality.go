package instrumentation

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// Cardinality management helpers for metrics.
// Sender addresses are unbounded; only their domains may become label values,
// and only when detailed labels are enabled.

// ExtractSenderDomain returns the lower-cased domain of a From header value.
// Both bare addresses and "Name <addr>" forms are accepted, including
// display names with RFC 2047 encoded-words.
//
// Example:
//
//	ExtractSenderDomain("jane@example.com")              // "example.com"
//	ExtractSenderDomain("Alerts <alerts@Example.COM>")   // "example.com"
//	ExtractSenderDomain("invalid")                       // "unknown"
//	ExtractSenderDomain("")                              // "unknown"
func ExtractSenderDomain(from string) string {
	if from == "" {
		return "unknown"
	}

	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "unknown"
	}
	return strings.ToLower(strings.Trim(addr[at+1:], "> "))
}

// Operation types for Google API metrics.
const (
	OperationList          = "list"
	OperationGet           = "get"
	OperationGetAttachment = "get_attachment"
	OperationModify        = "modify"
	OperationListLabels    = "list_labels"
	OperationCreateLabel   = "create_label"
)

// Message results for messages_processed_total.
const (
	MessageResultDelivered = "delivered"
	MessageResultFailed    = "failed"
	MessageResultSkipped   = "skipped"
	MessageResultUnlabeled = "unlabeled"
	MessageResultDryRun    = "dry_run"
)
