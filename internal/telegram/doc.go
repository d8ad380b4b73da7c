// Package telegram provides a minimal Telegram Bot API client bound to one chat.
//
// Only the two methods needed for forwarding mail are implemented:
// sendMessage, with the text carried in the query string, and sendPhoto,
// uploaded as multipart form data. Every call reports the raw HTTP status
// so callers can decide whether a retry with a smaller payload is useful.
//
// Failed calls return a *Error carrying the operation, the status code, and
// the API's description. The bot token never appears in returned errors.
package telegram
