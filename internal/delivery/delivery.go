package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxforward/internal/instrumentation"
	"github.com/teemow/inboxforward/internal/logging"
)

const (
	// MaxBodyRunes is the body length, in characters, kept by the truncation step.
	MaxBodyRunes = 1000

	// Ellipsis is appended to a truncated body.
	Ellipsis = "..."

	// FallbackBody replaces the body on the final attempt.
	FallbackBody = "This email could not be forwarded. Please open it in your mailbox to read it."
)

// Kind distinguishes text and image deliveries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Result is the final state of a delivery.
type Result string

const (
	ResultDelivered Result = "delivered"
	ResultFailed    Result = "failed"
)

// Step names of the text retry ladder.
const (
	StepOriginal  = "original"
	StepTruncated = "truncated"
	StepFallback  = "fallback"
	stepImage     = "single"
)

// Sender is the chat endpoint. Both methods return the HTTP status of the
// call (0 when no response was received) and a non-nil error unless the
// status is 200.
type Sender interface {
	SendMessage(ctx context.Context, text string) (int, error)
	SendPhoto(ctx context.Context, photo []byte, caption string) (int, error)
}

// Outcome reports how a delivery ended.
type Outcome struct {
	Kind Kind
	// Result is ResultDelivered or ResultFailed.
	Result Result
	// Attempts is the number of send calls made.
	Attempts int
	// Step is the ladder step of the last attempt.
	Step string
	// StatusCode is the HTTP status of the last attempt.
	StatusCode int
	// Err is the error of the last attempt, nil on success.
	Err error
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool {
	return o.Result == ResultDelivered
}

type step struct {
	name      string
	transform func(body string) string
	final     bool
}

// textLadder is tried in order until a send succeeds, a non-retryable
// status is returned, or the final step has been sent.
var textLadder = []step{
	{name: StepOriginal, transform: func(body string) string { return body }},
	{name: StepTruncated, transform: Truncate},
	{name: StepFallback, transform: func(string) string { return FallbackBody }, final: true},
}

// Client delivers composed notifications through a Sender.
type Client struct {
	sender  Sender
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a delivery client. logger and metrics may be nil.
func NewClient(sender Sender, logger *slog.Logger, metrics *instrumentation.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sender:  sender,
		logger:  logging.WithComponent(logger, "delivery"),
		metrics: metrics,
	}
}

// SendText composes a notification from the email headers and body and
// sends it, degrading the body on 400 and 401 responses: first truncated to
// MaxBodyRunes characters, then replaced by FallbackBody. At most three
// attempts are made. Any other failure stops the ladder immediately.
func (c *Client) SendText(ctx context.Context, subject, sender, body string) Outcome {
	out := Outcome{Kind: KindText, Result: ResultFailed}

	for _, s := range textLadder {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}

		text := Compose(sender, subject, s.transform(body))
		status, err := c.attempt(ctx, KindText, s.name, out.Attempts+1, func(ctx context.Context) (int, error) {
			return c.sender.SendMessage(ctx, text)
		})

		out.Attempts++
		out.Step = s.name
		out.StatusCode = status
		out.Err = err

		if err == nil {
			out.Result = ResultDelivered
			break
		}
		if s.final || !Retryable(status) {
			break
		}
	}

	c.finish(ctx, out)
	return out
}

// SendImage uploads one image with an optional caption. Images are not retried.
func (c *Client) SendImage(ctx context.Context, data []byte, caption string) Outcome {
	status, err := c.attempt(ctx, KindImage, stepImage, 1, func(ctx context.Context) (int, error) {
		return c.sender.SendPhoto(ctx, data, caption)
	})

	out := Outcome{
		Kind:       KindImage,
		Result:     ResultFailed,
		Attempts:   1,
		Step:       stepImage,
		StatusCode: status,
		Err:        err,
	}
	if err == nil {
		out.Result = ResultDelivered
	}

	c.finish(ctx, out)
	return out
}

func (c *Client) attempt(ctx context.Context, kind Kind, stepName string, n int, send func(context.Context) (int, error)) (int, error) {
	ctx, span := instrumentation.StartDeliverySpan(ctx, string(kind), stepName)
	defer span.End()

	start := time.Now()
	status, err := send(ctx)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", status)
	}
	duration := time.Since(start)

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrHTTPStatus, status))
	c.metrics.RecordDeliveryAttempt(ctx, string(kind), stepName, status, duration)

	logger := c.logger.With(logging.Kind(string(kind)), logging.Step(stepName), logging.Attempt(n), logging.HTTPStatus(status))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		logger.Warn("send attempt failed", slog.Duration(logging.KeyDuration, duration), logging.Err(err))
		return status, err
	}

	instrumentation.SetSpanSuccess(span)
	logger.Debug("send attempt succeeded", slog.Duration(logging.KeyDuration, duration))
	return status, nil
}

func (c *Client) finish(ctx context.Context, out Outcome) {
	c.metrics.RecordDeliveryOutcome(ctx, string(out.Kind), string(out.Result), out.Attempts)
}

// Retryable reports whether a text send that failed with status is worth
// retrying with a smaller payload.
func Retryable(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized
}

// Compose builds the notification text.
func Compose(sender, subject, body string) string {
	return "From: " + sender + "\nSubject: " + subject + "\nBody:\n" + body
}

// Truncate shortens body to MaxBodyRunes characters plus Ellipsis. Shorter
// bodies are returned unchanged.
func Truncate(body string) string {
	n := 0
	for i := range body {
		if n == MaxBodyRunes {
			return body[:i] + Ellipsis
		}
		n++
	}
	return body
}
