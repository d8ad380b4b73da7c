package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/inboxforward/internal/instrumentation"
	"github.com/teemow/inboxforward/internal/logging"
)

// userID addresses the authenticated mailbox.
const userID = "me"

// BreakerConfig tunes the circuit breaker around Gmail API calls.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker (default: 5)
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing (default: 60s)
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probe calls allowed while half-open (default: 1)
	HalfOpenRequests uint32
}

// Config holds the optional collaborators of a Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Breaker BreakerConfig
}

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a Gmail client. Authentication and endpoint come from
// opts, typically option.WithHTTPClient with an OAuth2 client.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "gmail")

	c := &Client{
		svc:     svc.Users,
		logger:  logger,
		metrics: cfg.Metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.breakerSettings(cfg.Breaker))
	return c, nil
}

func (c *Client) breakerSettings(cfg BreakerConfig) gobreaker.Settings {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	return gobreaker.Settings{
		Name:        instrumentation.ServiceGmail,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			c.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		},
	}
}

// tripsBreaker reports whether err indicates the API itself is unhealthy.
// Client errors and cancellations are the caller's problem.
func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return true
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return false
		}
	}
	return true
}

// call runs one API operation with tracing, metrics and the circuit breaker.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation)
	defer span.End()

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	return err
}

// BreakerState returns the current circuit breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// StatusCode returns the HTTP status of a Gmail API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound reports whether err is a Gmail API 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
