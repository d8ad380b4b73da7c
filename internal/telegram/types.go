package telegram

import "fmt"

// Error represents a failed Bot API call.
type Error struct {
	// Op is the API method that failed (e.g., "sendMessage", "sendPhoto")
	Op string

	// StatusCode is the HTTP status returned by the API, or 0 if no response was received
	StatusCode int

	// Description is the API's own error description, when it sent one
	Description string

	// Err is the underlying transport error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("telegram %s: %v", e.Op, e.Err)
	case e.Description != "":
		return fmt.Sprintf("telegram %s: http %d: %s", e.Op, e.StatusCode, e.Description)
	default:
		return fmt.Sprintf("telegram %s: http %d", e.Op, e.StatusCode)
	}
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Err
}

// apiResponse is the envelope every Bot API method replies with.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}
