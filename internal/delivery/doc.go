// Package delivery forwards extracted email content to a chat endpoint.
//
// Text notifications follow a bounded degrade-and-retry ladder. A 400 or 401
// response moves to the next step, any other failure stops:
//
//  1. original: the body as extracted
//  2. truncated: the body cut to MaxBodyRunes characters plus Ellipsis
//  3. fallback: FallbackBody, sent once regardless of outcome
//
// Images are sent once without retry. Every attempt is logged, traced and
// counted; the caller receives an Outcome describing the final state.
package delivery
