package extract

import (
	"context"
	"errors"
	"fmt"
)

// ErrAttachmentFetch wraps failures of the attachment resolver.
var ErrAttachmentFetch = errors.New("attachment fetch failed")

// FetchFunc resolves an attachment reference of the message being extracted
// to its base64 payload as returned by the mailbox API.
type FetchFunc func(ctx context.Context, attachmentID string) (string, error)

// Result is the outcome of walking a part tree.
type Result struct {
	// Text is the first text/plain body in depth-first pre-order, or "".
	Text string
	// Images holds every image body in traversal order.
	Images [][]byte
}

// Extract walks root depth-first and collects the first plain-text body and
// all images. Parts with missing or undecodable data are skipped. Only a
// failing fetch aborts the walk; its error wraps ErrAttachmentFetch.
func Extract(ctx context.Context, root Part, fetch FetchFunc) (Result, error) {
	var res Result
	var found bool
	if err := walk(ctx, root, fetch, &res, &found); err != nil {
		return Result{}, err
	}
	return res, nil
}

func walk(ctx context.Context, p Part, fetch FetchFunc, res *Result, found *bool) error {
	switch n := p.(type) {
	case TextLeaf:
		if !*found {
			res.Text = n.Data
			*found = true
		}

	case ImageLeaf:
		data := n.Data
		if len(data) == 0 && n.AttachmentID != "" {
			if fetch == nil {
				return fmt.Errorf("%w: no resolver for attachment %s", ErrAttachmentFetch, n.AttachmentID)
			}
			encoded, err := fetch(ctx, n.AttachmentID)
			if err != nil {
				return fmt.Errorf("%w: attachment %s: %w", ErrAttachmentFetch, n.AttachmentID, err)
			}
			decoded, err := DecodeBase64(encoded)
			if err != nil {
				return nil
			}
			data = decoded
		}
		if len(data) > 0 {
			res.Images = append(res.Images, data)
		}

	case Container:
		for _, child := range n.Children {
			if err := walk(ctx, child, fetch, res, found); err != nil {
				return err
			}
		}
	}
	return nil
}
