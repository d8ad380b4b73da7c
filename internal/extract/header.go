package extract

import (
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeHeader decodes RFC 2047 encoded-words such as
// "=?ISO-8859-1?Q?Caf=E9?=" in a header value. Gmail returns Subject and
// From verbatim, so non-ASCII values arrive encoded. Values that fail to
// decode are returned unchanged.
func DecodeHeader(value string) string {
	if !strings.Contains(value, "=?") {
		return value
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
