package quote

import (
	"regexp"
	"strings"
)

var (
	// quotedLine matches a conventional "> " quoted line and its line break.
	quotedLine = regexp.MustCompile(`(?m)^>[^\n]*\n?`)

	// englishHeader matches a standalone "On <date>, <someone> wrote:" line.
	englishHeader = regexp.MustCompile(`(?m)^On[ \t].*[ \t]wrote:[ \t\r]*$`)

	// spanishHeader matches "El <day> <month> <year>, <weekday>... <addr@host>".
	// The address sits on the header line or on the one line it wraps onto.
	spanishHeader = regexp.MustCompile(`(?m)^El \d{1,2} \S+ \d{4}, \S[^\n]*(?:\n[^\n]*)?<[^<>\s]+@[^<>\s]+>`)
)

// Strip removes quoted reply history from an email body and trims the result.
//
// Lines starting with '>' are removed. A citation header ("On ... wrote:" or
// the Spanish "El <date>, ... <addr>") is treated as the start of quoted
// history: it and everything after it are dropped, even if the tail contains
// new content. Strip is idempotent.
func Strip(text string) string {
	for {
		next := stripOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func stripOnce(text string) string {
	text = cutAtHeader(text, spanishHeader)
	text = cutAtHeader(text, englishHeader)
	text = quotedLine.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func cutAtHeader(text string, header *regexp.Regexp) string {
	if loc := header.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}
