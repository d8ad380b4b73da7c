package extract

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformedData is returned by DecodeBase64 when no known alphabet accepts the input.
var ErrMalformedData = errors.New("malformed base64 data")

var encodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// DecodeBase64 decodes Gmail body data. The API documents base64url, but
// padded, unpadded and standard-alphabet payloads are all seen in practice.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range encodings {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, ErrMalformedData
}
