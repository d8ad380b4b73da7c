package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// appName names the per-user cache directory.
const appName = "inboxforward"

// Scopes are the OAuth scopes requested for the mailbox: read messages and
// add labels.
var Scopes = []string{gmail.GmailModifyScope}

// ErrNoToken is returned when no cached token exists.
var ErrNoToken = errors.New("no Google OAuth token found, run `inboxforward auth` first")

// Credentials locates the OAuth client secret and the cached user token.
type Credentials struct {
	// ClientSecretFile is the OAuth client JSON downloaded from the Google Cloud console
	ClientSecretFile string

	// TokenFile is where the user token is cached (default: DefaultTokenFile())
	TokenFile string

	Logger *slog.Logger
}

// DefaultTokenFile returns the default token cache path.
func DefaultTokenFile() string {
	return filepath.Join(userCacheDir(), appName, "google.token")
}

// TokenPath returns the configured token file or DefaultTokenFile().
func (c Credentials) TokenPath() string {
	if c.TokenFile != "" {
		return c.TokenFile
	}
	return DefaultTokenFile()
}

func (c Credentials) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// OAuthConfig reads the client secret file into an oauth2 config.
func (c Credentials) OAuthConfig() (*oauth2.Config, error) {
	if c.ClientSecretFile == "" {
		return nil, fmt.Errorf("google client secret file is not configured")
	}
	data, err := os.ReadFile(c.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}
	return conf, nil
}

// HasToken checks if a cached token exists
func (c Credentials) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("invalid token file %s: no access or refresh token", path)
	}
	return &tok, nil
}

// SaveToken writes a token to path, creating the directory if needed.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// NewHTTPClient returns an HTTP client authorized with the cached token.
// Refreshed tokens are written back to the token file. The client is
// configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func NewHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	conf, err := creds.OAuthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(creds.TokenPath())
	if err != nil {
		return nil, err
	}

	base := &http.Client{
		Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   false,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}),
	}
	// Token refreshes go through the same instrumented transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	ts := &persistingTokenSource{
		src:    conf.TokenSource(ctx, tok),
		path:   creds.TokenPath(),
		last:   tok.AccessToken,
		logger: creds.logger(),
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(tok, ts),
			Base:   base.Transport,
		},
	}, nil
}

// persistingTokenSource saves every newly issued access token to disk so a
// restart does not start from an expired token.
type persistingTokenSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			s.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return homeDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
