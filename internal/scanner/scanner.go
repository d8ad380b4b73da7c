package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxforward/internal/delivery"
	"github.com/teemow/inboxforward/internal/extract"
	mailbox "github.com/teemow/inboxforward/internal/gmail"
	"github.com/teemow/inboxforward/internal/instrumentation"
	"github.com/teemow/inboxforward/internal/logging"
	"github.com/teemow/inboxforward/internal/quote"
)

// Inbox is the mailbox the scanner reads from and labels.
type Inbox interface {
	ListMessageIDs(ctx context.Context, q string) ([]string, error)
	GetMessage(ctx context.Context, messageID string) (*gmail.Message, error)
	GetAttachmentData(ctx context.Context, messageID, attachmentID string) (string, error)
	ListLabels(ctx context.Context) ([]*gmail.Label, error)
	AddLabel(ctx context.Context, messageID, labelID string) error
}

// Deliverer forwards extracted content to the chat.
type Deliverer interface {
	SendText(ctx context.Context, subject, sender, body string) delivery.Outcome
	SendImage(ctx context.Context, data []byte, caption string) delivery.Outcome
}

// Config controls a Scanner.
type Config struct {
	// SkipSenders are From header values that are never forwarded. Matching
	// is exact.
	SkipSenders []string

	// ProcessedLabel is the name of the label marking handled messages.
	// It must already exist in the mailbox.
	ProcessedLabel string

	// MarkOnFailure labels messages whose delivery failed, so they are not
	// retried on the next cycle.
	MarkOnFailure bool

	// CaptionImages sends the email subject as the caption of every image.
	CaptionImages bool

	// DryRun extracts and logs messages without delivering or labeling them.
	DryRun bool

	// IncludePII logs sender addresses verbatim instead of hashed.
	IncludePII bool

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Summary counts what happened during one cycle.
type Summary struct {
	RunID string

	Listed    int
	Delivered int
	Failed    int
	Skipped   int
	DryRun    int
	Labeled   int
	// Unlabeled counts messages that should have been labeled but were not.
	Unlabeled int
}

// Scanner runs poll cycles against an Inbox.
type Scanner struct {
	inbox Inbox
	chat  Deliverer
	cfg   Config
	skip  map[string]struct{}

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// New creates a Scanner. chat may be nil in dry-run mode.
func New(inbox Inbox, chat Deliverer, cfg Config) (*Scanner, error) {
	if inbox == nil {
		return nil, errors.New("inbox is required")
	}
	if chat == nil && !cfg.DryRun {
		return nil, errors.New("chat deliverer is required")
	}
	if cfg.ProcessedLabel == "" {
		return nil, errors.New("processed label name is required")
	}

	skip := make(map[string]struct{}, len(cfg.SkipSenders))
	for _, s := range cfg.SkipSenders {
		skip[s] = struct{}{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{
		inbox:   inbox,
		chat:    chat,
		cfg:     cfg,
		skip:    skip,
		logger:  logging.WithComponent(logger, "scanner"),
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
	}, nil
}

// cycle holds state shared by the messages of one poll cycle.
type cycle struct {
	runID   string
	logger  *slog.Logger
	labelID string
}

// ScanAndDeliver runs one poll cycle: every unread message without the
// processed label is fetched, forwarded unless its sender is skip-listed,
// and then labeled. Messages are handled one at a time in listing order.
//
// A listing or message fetch failure aborts the cycle and is returned
// together with the counts gathered so far. Delivery and labeling failures
// are logged and counted but do not abort the cycle.
func (s *Scanner) ScanAndDeliver(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	cy := &cycle{runID: runID, logger: logging.WithRunID(s.logger, runID)}
	sum := Summary{RunID: runID}

	ctx, span := instrumentation.StartSpan(ctx, "scanner.cycle",
		attribute.String(instrumentation.SpanAttrRunID, runID))
	defer span.End()
	start := time.Now()

	err := s.scan(ctx, cy, &sum)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		cy.logger.Error("poll cycle failed", logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordPollCycle(ctx, status, time.Since(start))

	cy.logger.Info("poll cycle finished",
		logging.Status(status),
		slog.Int("listed", sum.Listed),
		slog.Int("delivered", sum.Delivered),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("dry_run", sum.DryRun),
		slog.Int("labeled", sum.Labeled),
		slog.Int("unlabeled", sum.Unlabeled),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	return sum, err
}

func (s *Scanner) scan(ctx context.Context, cy *cycle, sum *Summary) error {
	ids, err := s.inbox.ListMessageIDs(ctx, mailbox.UnprocessedQuery(s.cfg.ProcessedLabel))
	if err != nil {
		return fmt.Errorf("failed to list unprocessed messages: %w", err)
	}
	sum.Listed = len(ids)
	if len(ids) == 0 {
		cy.logger.Debug("no unprocessed messages")
		return nil
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		fwd, result, err := s.handle(ctx, cy, id)
		if err != nil {
			return err
		}
		unlabeled := s.expectsLabel(result) && !fwd.Labeled
		sum.add(result, fwd.Labeled, unlabeled)
		s.metrics.RecordMessage(ctx, result, fwd.Sender)
		if unlabeled {
			s.metrics.RecordMessage(ctx, instrumentation.MessageResultUnlabeled, fwd.Sender)
		}
		s.audit.LogForward(fwd)
	}
	return nil
}

func (sum *Summary) add(result string, labeled, unlabeled bool) {
	switch result {
	case instrumentation.MessageResultDelivered:
		sum.Delivered++
	case instrumentation.MessageResultFailed:
		sum.Failed++
	case instrumentation.MessageResultSkipped:
		sum.Skipped++
	case instrumentation.MessageResultDryRun:
		sum.DryRun++
	}
	if labeled {
		sum.Labeled++
	}
	if unlabeled {
		sum.Unlabeled++
	}
}

// expectsLabel reports whether a message with the given result is labeled.
func (s *Scanner) expectsLabel(result string) bool {
	switch result {
	case instrumentation.MessageResultDelivered:
		return true
	case instrumentation.MessageResultFailed:
		return s.cfg.MarkOnFailure
	}
	return false
}

// handle processes one message. The returned error is non-nil only when the
// message itself could not be fetched.
func (s *Scanner) handle(ctx context.Context, cy *cycle, id string) (*instrumentation.Forward, string, error) {
	ctx, span := instrumentation.StartSpan(ctx, "scanner.message",
		attribute.String(instrumentation.SpanAttrRunID, cy.runID),
		attribute.String(instrumentation.SpanAttrMessageID, id))
	defer span.End()

	fwd := instrumentation.NewForward(cy.runID, id).WithSpanContext(ctx)
	logger := cy.logger.With(logging.MessageID(id))

	msg, err := s.inbox.GetMessage(ctx, id)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, "", fmt.Errorf("failed to fetch message %s: %w", id, err)
	}

	rawFrom := mailbox.HeaderValue(msg, "From")
	subject := extract.DecodeHeader(mailbox.HeaderValue(msg, "Subject"))
	from := extract.DecodeHeader(rawFrom)
	fwd.WithHeaders(from, subject)

	if s.skipped(rawFrom, from) {
		logger.Debug("sender is skip-listed", logging.Sender(from, s.cfg.IncludePII))
		fwd.Skipped = true
		fwd.Complete()
		return fwd, instrumentation.MessageResultSkipped, nil
	}

	fetch := func(ctx context.Context, attachmentID string) (string, error) {
		return s.inbox.GetAttachmentData(ctx, id, attachmentID)
	}
	res, err := extract.Extract(ctx, extract.FromGmail(msg.Payload), fetch)
	if err != nil {
		fwd.ExtractFailure = err.Error()
		logger.Warn("failed to extract message content", logging.Err(err))
		instrumentation.SetSpanError(span, err)
	}
	body := quote.Strip(res.Text)

	if s.cfg.DryRun {
		logger.Info("dry run, message not forwarded",
			logging.Sender(from, s.cfg.IncludePII),
			slog.Int("body_chars", len([]rune(body))),
			slog.Int("images", len(res.Images)))
		fwd.Complete()
		return fwd, instrumentation.MessageResultDryRun, nil
	}

	if err == nil {
		s.deliver(ctx, fwd, subject, from, body, res.Images)
	}

	result := instrumentation.MessageResultDelivered
	if fwd.Failed() {
		result = instrumentation.MessageResultFailed
		instrumentation.SetSpanError(span, errors.New("delivery failed"))
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	if s.expectsLabel(result) {
		fwd.Labeled = s.markProcessed(ctx, cy, logger, id)
	}
	fwd.Complete()
	return fwd, result, nil
}

// skipped reports whether the sender is skip-listed, comparing both the
// header as received and its decoded form.
func (s *Scanner) skipped(raw, decoded string) bool {
	if _, ok := s.skip[raw]; ok {
		return true
	}
	_, ok := s.skip[decoded]
	return ok
}

// deliver sends the text notification, then every image in order.
func (s *Scanner) deliver(ctx context.Context, fwd *instrumentation.Forward, subject, from, body string, images [][]byte) {
	out := s.chat.SendText(ctx, subject, from, body)
	fwd.TextAttempts = out.Attempts
	fwd.TextResult = instrumentation.StatusSuccess
	if !out.OK() {
		fwd.TextResult = instrumentation.StatusError
	}

	caption := ""
	if s.cfg.CaptionImages {
		caption = subject
	}
	for _, img := range images {
		if s.chat.SendImage(ctx, img, caption).OK() {
			fwd.ImagesSent++
		} else {
			fwd.ImagesFailed++
		}
	}
}

// markProcessed applies the processed label and reports whether it was
// applied. The label ID is resolved once per cycle; a failed lookup is
// retried for the next message.
func (s *Scanner) markProcessed(ctx context.Context, cy *cycle, logger *slog.Logger, id string) bool {
	if cy.labelID == "" {
		labelID, err := s.resolveLabel(ctx)
		if err != nil {
			if errors.Is(err, mailbox.ErrLabelNotFound) {
				logger.Error("processed label does not exist, message left unlabeled; create it with `inboxforward labels --create`",
					slog.String("label", s.cfg.ProcessedLabel))
			} else {
				logger.Error("failed to resolve processed label, message left unlabeled", logging.Err(err))
			}
			return false
		}
		cy.labelID = labelID
	}

	if err := s.inbox.AddLabel(ctx, id, cy.labelID); err != nil {
		logger.Error("failed to label message", logging.Err(err))
		return false
	}
	return true
}

func (s *Scanner) resolveLabel(ctx context.Context) (string, error) {
	labels, err := s.inbox.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	l := mailbox.LabelByName(labels, s.cfg.ProcessedLabel)
	if l == nil {
		return "", fmt.Errorf("%w: %q", mailbox.ErrLabelNotFound, s.cfg.ProcessedLabel)
	}
	return l.Id, nil
}
