package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/inboxforward/internal/logging"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 30 * time.Second

	// photoFilename and photoContentType describe every uploaded image.
	photoFilename    = "image.jpg"
	photoContentType = "image/jpeg"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Config holds the bot identity and the destination chat.
type Config struct {
	Token   string
	ChatID  string
	BaseURL string
	Timeout time.Duration
}

// Client sends messages to a single chat through the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
}

// NewClient creates a new Telegram client. A "bot" prefix on the token is
// accepted and stripped, since the API path adds it.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimPrefix(strings.TrimSpace(cfg.Token), "bot")
	if token == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, fmt.Errorf("chat ID cannot be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		baseURL: baseURL,
		token:   token,
		chatID:  cfg.ChatID,
	}, nil
}

// ChatID returns the destination chat.
func (c *Client) ChatID() string {
	return c.chatID
}

// SendMessage posts text to the chat. The text travels form-encoded in the
// query string, so spaces become '+'. It returns the HTTP status (0 when no response arrived)
// and a non-nil *Error for anything but 200.
func (c *Client) SendMessage(ctx context.Context, text string) (int, error) {
	q := url.Values{}
	q.Set("chat_id", c.chatID)
	q.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage")+"?"+q.Encode(), nil)
	if err != nil {
		return 0, &Error{Op: "sendMessage", Err: c.redact(err)}
	}
	return c.do(req, "sendMessage")
}

// SendPhoto uploads an image to the chat as multipart form data, with an
// optional caption.
func (c *Client) SendPhoto(ctx context.Context, photo []byte, caption string) (int, error) {
	if len(photo) == 0 {
		return 0, &Error{Op: "sendPhoto", Err: fmt.Errorf("photo cannot be empty")}
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := writePhotoForm(w, c.chatID, photo, caption); err != nil {
		return 0, &Error{Op: "sendPhoto", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &body)
	if err != nil {
		return 0, &Error{Op: "sendPhoto", Err: c.redact(err)}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, "sendPhoto")
}

func writePhotoForm(w *multipart.Writer, chatID string, photo []byte, caption string) error {
	if err := w.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename="%s"`, photoFilename))
	h.Set("Content-Type", photoContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("failed to write photo: %w", err)
	}
	return w.Close()
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

func (c *Client) do(req *http.Request, op string) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Op: op, Err: c.redact(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	apiErr := &Error{Op: op, StatusCode: resp.StatusCode}
	var envelope apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&envelope); err == nil {
		apiErr.Description = envelope.Description
	}
	return resp.StatusCode, apiErr
}

// redact removes the bot token from URLs quoted in transport errors.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = logging.RedactToken(ue.URL, c.token)
		return ue
	}
	return err
}
