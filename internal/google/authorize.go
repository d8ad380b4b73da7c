package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthorizeOptions controls the interactive authorization flow.
type AuthorizeOptions struct {
	// Out receives the instructions and the authorization URL
	Out io.Writer

	// Open is called with the authorization URL, e.g. to launch a browser.
	// Optional.
	Open func(authURL string) error

	// ListenAddr is the loopback address for the redirect (default: 127.0.0.1:0)
	ListenAddr string
}

type callbackResult struct {
	code string
	err  error
}

// Authorize runs the installed-app OAuth flow with a loopback redirect and
// PKCE, and returns the issued token.
func Authorize(ctx context.Context, conf *oauth2.Config, opts AuthorizeOptions) (*oauth2.Token, error) {
	addr := opts.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth redirect: %w", err)
	}

	cfg := *conf
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Open the following URL in your browser to authorize access to Gmail:\n\n%s\n\n", authURL)
	}
	if opts.Open != nil {
		if err := opts.Open(authURL); err != nil && opts.Out != nil {
			fmt.Fprintf(opts.Out, "Could not open browser: %v\n", err)
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			http.Error(w, "Authorization failed. You can close this window.", http.StatusForbidden)
		case q.Get("code") == "":
			res.err = errors.New("authorization response has no code")
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
}
