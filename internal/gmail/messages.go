package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxforward/internal/instrumentation"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024

	// listPageSize is the page size requested from messages.list.
	listPageSize = 100
)

// ListMessageIDs returns the IDs of all messages matching the search query,
// following pagination until exhausted.
func (c *Client) ListMessageIDs(ctx context.Context, q string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		var res *gmail.ListMessagesResponse
		err := c.call(ctx, instrumentation.OperationList, func(ctx context.Context) error {
			req := c.svc.Messages.List(userID).Q(q).MaxResults(listPageSize).Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var err error
			res, err = req.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			return ids, nil
		}
		pageToken = res.NextPageToken
	}
}

// GetMessage retrieves a full Gmail message
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// GetAttachmentData retrieves an attachment body as returned by the API,
// still base64url-encoded.
func (c *Client) GetAttachmentData(ctx context.Context, messageID, attachmentID string) (string, error) {
	if messageID == "" {
		return "", fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return "", fmt.Errorf("attachmentID is required")
	}

	var body *gmail.MessagePartBody
	err := c.call(ctx, instrumentation.OperationGetAttachment, func(ctx context.Context) error {
		var err error
		body, err = c.svc.Messages.Attachments.Get(userID, messageID, attachmentID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	if body.Size > MaxAttachmentSize {
		return "", fmt.Errorf("attachment size %d exceeds maximum size %d", body.Size, MaxAttachmentSize)
	}
	return body.Data, nil
}

// AddLabel applies a label to a message.
func (c *Client) AddLabel(ctx context.Context, messageID, labelID string) error {
	err := c.call(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(userID, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to label message %s: %w", messageID, err)
	}
	return nil
}

// HeaderValue extracts a header value from a Gmail message.
// The name match is exact and the first occurrence wins.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, mph := range m.Payload.Headers {
		if mph.Name == header {
			return mph.Value
		}
	}
	return ""
}
