// Package quote strips quoted reply history from plain-text email bodies
// before they are forwarded to chat.
package quote
