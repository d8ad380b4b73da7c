package extract

import (
	"strings"
	"unicode/utf8"

	gmail "google.golang.org/api/gmail/v1"
)

// MimeTextPlain is the only MIME type considered a body candidate.
const MimeTextPlain = "text/plain"

// Part is one node of a message's content tree. It is implemented by
// Container, TextLeaf, ImageLeaf and Other only.
type Part interface {
	isPart()
}

// Container holds child parts in their original order.
type Container struct {
	MimeType string
	Children []Part
}

// TextLeaf is a text/plain part whose inline body has already been decoded.
type TextLeaf struct {
	Data string
}

// ImageLeaf is an image/* part. Data holds inline bytes; when Data is nil
// the bytes must be fetched through AttachmentID.
type ImageLeaf struct {
	MimeType     string
	Data         []byte
	AttachmentID string
}

// Other is any part the extractor ignores.
type Other struct {
	MimeType string
}

func (Container) isPart() {}
func (TextLeaf) isPart()  {}
func (ImageLeaf) isPart() {}
func (Other) isPart()     {}

// FromGmail converts a Gmail API message part into a Part tree.
//
// Inline body data is base64-decoded here. A part whose body cannot be
// decoded becomes Other. A Gmail part that declares a leaf type and also
// has sub-parts becomes a Container whose first child is the leaf view of
// the part itself, so its own content is visited before its children.
func FromGmail(p *gmail.MessagePart) Part {
	if p == nil {
		return Other{}
	}

	self := leafFromGmail(p)
	if len(p.Parts) == 0 {
		return self
	}

	children := make([]Part, 0, len(p.Parts)+1)
	if _, ignored := self.(Other); !ignored {
		children = append(children, self)
	}
	for _, sub := range p.Parts {
		children = append(children, FromGmail(sub))
	}
	return Container{MimeType: p.MimeType, Children: children}
}

func leafFromGmail(p *gmail.MessagePart) Part {
	var data, attachmentID string
	if p.Body != nil {
		data = p.Body.Data
		attachmentID = p.Body.AttachmentId
	}

	switch {
	case p.MimeType == MimeTextPlain:
		if data == "" {
			return Other{MimeType: p.MimeType}
		}
		raw, err := DecodeBase64(data)
		if err != nil || !utf8.Valid(raw) {
			return Other{MimeType: p.MimeType}
		}
		return TextLeaf{Data: string(raw)}

	case strings.HasPrefix(p.MimeType, "image/"):
		if data != "" {
			raw, err := DecodeBase64(data)
			if err == nil {
				return ImageLeaf{MimeType: p.MimeType, Data: raw}
			}
		}
		if attachmentID != "" {
			return ImageLeaf{MimeType: p.MimeType, AttachmentID: attachmentID}
		}
		return Other{MimeType: p.MimeType}
	}

	return Other{MimeType: p.MimeType}
}
