// Package logging provides structured logging utilities for the inboxforward application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger once and tag it per component:
//
//	logger := logging.NewLogger(os.Stderr, "info", logging.FormatJSON)
//	logger = logging.WithComponent(logger, "scanner")
//	logger.Info("message delivered",
//	    logging.MessageID(id),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Sender addresses are hashed unless explicitly configured otherwise
//   - Bot tokens are never logged directly; RedactToken scrubs them from error text
package logging
