// Package cmd implements the command-line interface for inboxforward.
//
// This package provides the following commands:
//   - poll: Forward unread messages without the processed label to Telegram
//   - auth: Authorize Gmail access and cache the OAuth token
//   - labels: List labels and optionally create the processed label
//   - version: Display version information
//
// The poll command is the default command when no subcommand is specified.
package cmd
