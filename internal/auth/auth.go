package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/moodarc/internal/logging"
)

const (
	// DefaultCLIRedirectURI uses explicit IPv4 loopback as required by Spotify for local development.
	// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
	DefaultCLIRedirectURI = "http://127.0.0.1:8080/callback"
	callbackTimeout       = 2 * time.Minute

	// RefreshWindow is how close to expiry a token must be before it is refreshed.
	RefreshWindow = 60 * time.Second
)

var (
	// ErrMissingCredentials is returned when the client ID or secret is not set.
	ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Credentials configure the Spotify OAuth client.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// NewSpotifyAuth builds the OAuth authenticator shared by the web server and the CLI.
func NewSpotifyAuth(c Credentials) (*spotifyauth.Authenticator, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	return spotifyauth.New(
		spotifyauth.WithClientID(c.ClientID),
		spotifyauth.WithClientSecret(c.ClientSecret),
		spotifyauth.WithRedirectURL(c.RedirectURI),
		spotifyauth.WithScopes(c.Scopes...),
	), nil
}

// NeedsRefresh reports whether token expires within RefreshWindow.
func NeedsRefresh(token *oauth2.Token) bool {
	if token == nil || token.Expiry.IsZero() {
		return false
	}
	return time.Until(token.Expiry) < RefreshWindow
}

// Refresh returns a fresh token when the current one is about to expire.
// The second return value reports whether a new token was obtained.
func Refresh(ctx context.Context, a *spotifyauth.Authenticator, token *oauth2.Token) (*oauth2.Token, bool, error) {
	if !NeedsRefresh(token) || token.RefreshToken == "" {
		return token, false, nil
	}

	// oauth2 only refreshes tokens that are already expired.
	stale := *token
	stale.Expiry = time.Now().Add(-time.Second)

	fresh, err := spotify.New(a.Client(ctx, &stale)).Token()
	if err != nil {
		return nil, false, fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, true, nil
}

// Authenticator handles the command-line OAuth flow with a local callback server.
type Authenticator struct {
	auth     *spotifyauth.Authenticator
	cache    *TokenCache
	redirect *url.URL
	out      io.Writer
}

// New creates a command-line Authenticator. An empty RedirectURI uses
// DefaultCLIRedirectURI; the callback server listens on its host and path.
func New(c Credentials, cache *TokenCache) (*Authenticator, error) {
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultCLIRedirectURI
	}
	redirect, err := url.Parse(c.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}

	a, err := NewSpotifyAuth(c)
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		auth:     a,
		cache:    cache,
		redirect: redirect,
		out:      os.Stderr,
	}, nil
}

// SetOutput changes where login instructions are printed.
func (a *Authenticator) SetOutput(w io.Writer) {
	a.out = w
}

// Authenticate returns an authenticated Spotify client.
// It first checks for a cached token and uses it if valid/refreshable.
// Otherwise, it runs the full OAuth flow.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		// oauth2 will auto-refresh if needed
		client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))

		if _, err := client.CurrentUser(ctx); err == nil {
			newToken, tokenErr := client.Token()
			if tokenErr == nil && newToken.AccessToken != token.AccessToken {
				_ = a.cache.Save(newToken)
			}
			return client, nil
		}

		logging.Warn().Msg("cached Spotify token rejected, starting new authentication")
	}

	return a.Login(ctx)
}

// Login always runs the OAuth authorization code flow and caches the token.
func (a *Authenticator) Login(ctx context.Context) (*spotify.Client, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	path := a.redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              a.redirect.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-time.After(callbackTimeout):
		_ = server.Shutdown(ctx)
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if err := a.cache.Save(token); err != nil {
		// auth succeeded; the next run will just log in again
		logging.Warn().Err(err).Msg("failed to cache token")
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", errMsg)
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>moodarc</title></head>
<body>
<h1>Logged in to Spotify</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	tokenCh <- token
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// TokenPath is where the token cache lives.
func (a *Authenticator) TokenPath() string {
	return a.cache.Path()
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}
