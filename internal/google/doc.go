// Package google provides OAuth2 credentials for the Gmail API.
//
// The user token is cached as JSON under the user cache directory
// (e.g. ~/.cache/inboxforward/google.token) and is created by the
// installed-app flow in Authorize. NewHTTPClient wraps the cached token in
// an authorized, traced HTTP client and writes refreshed tokens back to disk.
package google
