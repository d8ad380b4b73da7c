package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	googleapiError404 = googleapi.Error{Code: http.StatusNotFound}
	googleapiError429 = googleapi.Error{Code: http.StatusTooManyRequests}
	googleapiError500 = googleapi.Error{Code: http.StatusInternalServerError}
)

func newTestClient(t *testing.T, cfg Config, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), cfg,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}

func TestListMessageIDsFollowsPages(t *testing.T) {
	var queries []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(w, map[string]any{
				"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
				"nextPageToken": "p2",
			})
		case "p2":
			writeJSON(w, map[string]any{
				"messages": []map[string]string{{"id": "m3"}},
			})
		default:
			writeAPIError(w, http.StatusBadRequest, "bad page token")
		}
	})

	c := newTestClient(t, Config{}, mux)
	ids, err := c.ListMessageIDs(context.Background(), UnprocessedQuery("forwarded"))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, []string{"is:unread -label:forwarded", "is:unread -label:forwarded"}, queries)
}

func TestListMessageIDsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"resultSizeEstimate": 0})
	})

	c := newTestClient(t, Config{}, mux)
	ids, err := c.ListMessageIDs(context.Background(), "is:unread")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGetMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		if r.PathValue("id") != "m1" {
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
			return
		}
		writeJSON(w, map[string]any{
			"id": "m1",
			"payload": map[string]any{
				"mimeType": "text/plain",
				"headers": []map[string]string{
					{"name": "From", "value": "Alice <alice@example.com>"},
					{"name": "Subject", "value": "Hello"},
				},
				"body": map[string]any{"data": "SGk"},
			},
		})
	})

	c := newTestClient(t, Config{}, mux)

	msg, err := c.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Alice <alice@example.com>", HeaderValue(msg, "From"))
	assert.Equal(t, "Hello", HeaderValue(msg, "Subject"))
	assert.Equal(t, "SGk", msg.Payload.Body.Data)

	_, err = c.GetMessage(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestGetAttachmentData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{mid}/attachments/{aid}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("aid") {
		case "a1":
			writeJSON(w, map[string]any{"size": 3, "data": "aW1n"})
		case "huge":
			writeJSON(w, map[string]any{"size": MaxAttachmentSize + 1, "data": ""})
		default:
			writeAPIError(w, http.StatusNotFound, "not found")
		}
	})

	c := newTestClient(t, Config{}, mux)
	ctx := context.Background()

	data, err := c.GetAttachmentData(ctx, "m1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "aW1n", data)

	_, err = c.GetAttachmentData(ctx, "m1", "huge")
	assert.ErrorContains(t, err, "exceeds maximum size")

	_, err = c.GetAttachmentData(ctx, "m1", "gone")
	assert.True(t, IsNotFound(err))

	_, err = c.GetAttachmentData(ctx, "", "a1")
	assert.ErrorContains(t, err, "messageID is required")
	_, err = c.GetAttachmentData(ctx, "m1", "")
	assert.ErrorContains(t, err, "attachmentID is required")
}

func TestAddLabel(t *testing.T) {
	var got gmail.ModifyMessageRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/{id}/modify", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m1", r.PathValue("id"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		writeJSON(w, map[string]any{"id": "m1"})
	})

	c := newTestClient(t, Config{}, mux)
	require.NoError(t, c.AddLabel(context.Background(), "m1", "Label_7"))

	assert.Equal(t, []string{"Label_7"}, got.AddLabelIds)
	assert.Empty(t, got.RemoveLabelIds)
}

func TestLabels(t *testing.T) {
	var created gmail.Label
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"labels": []map[string]string{
			{"id": "INBOX", "name": "INBOX", "type": "system"},
			{"id": "Label_7", "name": "forwarded", "type": "user"},
		}})
	})
	mux.HandleFunc("POST /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(w, map[string]any{"id": "Label_9", "name": created.Name})
	})

	c := newTestClient(t, Config{}, mux)
	ctx := context.Background()

	labels, err := c.ListLabels(ctx)
	require.NoError(t, err)
	assert.Len(t, labels, 2)

	l, err := c.FindLabel(ctx, "forwarded")
	require.NoError(t, err)
	assert.Equal(t, "Label_7", l.Id)

	_, err = c.FindLabel(ctx, "Forwarded")
	assert.ErrorIs(t, err, ErrLabelNotFound)

	l, err = c.CreateLabel(ctx, "telegram")
	require.NoError(t, err)
	assert.Equal(t, "Label_9", l.Id)
	assert.Equal(t, "telegram", created.Name)
	assert.Equal(t, "labelShow", created.LabelListVisibility)

	_, err = c.CreateLabel(ctx, "  ")
	assert.Error(t, err)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeAPIError(w, http.StatusServiceUnavailable, "backend unavailable")
	})

	c := newTestClient(t, Config{Breaker: BreakerConfig{ConsecutiveFailures: 2}}, mux)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ListLabels(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), c.BreakerState())

	before := hits.Load()
	_, err := c.ListLabels(ctx)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the API")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not found")
	})

	c := newTestClient(t, Config{Breaker: BreakerConfig{ConsecutiveFailures: 2}}, mux)
	for i := 0; i < 5; i++ {
		_, err := c.GetMessage(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed.String(), c.BreakerState())
}

func TestTripsBreaker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, false},
		{"plain error", errors.New("dial tcp: refused"), true},
		{"not found", &googleapiError404, false},
		{"rate limited", &googleapiError429, true},
		{"server error", &googleapiError500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tripsBreaker(tt.err))
		})
	}
}

func TestHeaderValue(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "Subject", Value: "first"},
		{Name: "Subject", Value: "second"},
		{Name: "from", Value: "lower"},
	}}}

	assert.Equal(t, "first", HeaderValue(msg, "Subject"))
	assert.Equal(t, "", HeaderValue(msg, "From"))
	assert.Equal(t, "", HeaderValue(&gmail.Message{}, "Subject"))
	assert.Equal(t, "", HeaderValue(nil, "Subject"))
}

func TestUnprocessedQuery(t *testing.T) {
	assert.Equal(t, "is:unread -label:forwarded", UnprocessedQuery("forwarded"))
	assert.Equal(t, `is:unread -label:"sent to telegram"`, UnprocessedQuery("sent to telegram"))
}
