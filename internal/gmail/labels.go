package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxforward/internal/instrumentation"
)

// ErrLabelNotFound is returned when no label has the requested name.
var ErrLabelNotFound = errors.New("label not found")

// ListLabels returns all labels of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var resp *gmail.ListLabelsResponse
	err := c.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Labels.List(userID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return resp.Labels, nil
}

// FindLabel returns the label named name.
func (c *Client) FindLabel(ctx context.Context, name string) (*gmail.Label, error) {
	labels, err := c.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	if l := LabelByName(labels, name); l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrLabelNotFound, name)
}

// CreateLabel creates a user label visible in the label list.
func (c *Client) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("label name is required")
	}

	var label *gmail.Label
	err := c.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		label, err = c.svc.Labels.Create(userID, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return label, nil
}

// LabelByName returns the label with exactly the given name, or nil.
func LabelByName(labels []*gmail.Label, name string) *gmail.Label {
	for _, l := range labels {
		if l != nil && l.Name == name {
			return l
		}
	}
	return nil
}

// UnprocessedQuery returns the search query selecting unread messages that
// do not carry the processed label.
func UnprocessedQuery(processedLabel string) string {
	return "is:unread -label:" + quoteLabel(processedLabel)
}

// quoteLabel renders a label name as a search term. Gmail matches label
// names with spaces, slashes and dashes interchangeably when written with
// dashes; quoting keeps other characters intact.
func quoteLabel(name string) string {
	if name == "" || strings.ContainsAny(name, " \t\"()") {
		return `"` + strings.ReplaceAll(name, `"`, "") + `"`
	}
	return name
}
