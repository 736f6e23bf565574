package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenCache_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "with refresh token",
			token: &oauth2.Token{
				AccessToken:  "access",
				TokenType:    "Bearer",
				RefreshToken: "refresh",
				Expiry:       time.Now().Add(time.Hour).Round(time.Second),
			},
		},
		{
			name:  "access only",
			token: &oauth2.Token{AccessToken: "access-only", TokenType: "Bearer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache(filepath.Join(t.TempDir(), "nested", "token.json"))

			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}
			if loaded.AccessToken != tt.token.AccessToken || loaded.RefreshToken != tt.token.RefreshToken {
				t.Errorf("Load() = %+v, want %+v", loaded, tt.token)
			}
			if !loaded.Expiry.Equal(tt.token.Expiry) {
				t.Errorf("Expiry = %v, want %v", loaded.Expiry, tt.token.Expiry)
			}
		})
	}
}

func TestTokenCache_SaveReplaces(t *testing.T) {
	dir := t.TempDir()
	cache := NewTokenCache(filepath.Join(dir, "token.json"))

	for _, access := range []string{"first", "second"} {
		if err := cache.Save(&oauth2.Token{AccessToken: access}); err != nil {
			t.Fatalf("Save(%s) error = %v", access, err)
		}
	}

	loaded, err := cache.Load()
	if err != nil || loaded == nil || loaded.AccessToken != "second" {
		t.Fatalf("Load() = %v, %v; want second", loaded, err)
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestTokenCache_LoadAbsent(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"access_token":""}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for name, path := range map[string]string{
		"missing file":       filepath.Join(dir, "missing", "token.json"),
		"empty access token": empty,
	} {
		t.Run(name, func(t *testing.T) {
			token, err := NewTokenCache(path).Load()
			if err != nil || token != nil {
				t.Errorf("Load() = %v, %v; want nil, nil", token, err)
			}
		})
	}
}

func TestTokenCache_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenCache(path).Load(); err == nil {
		t.Error("Load() should fail on a corrupt file")
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	if err := NewTokenCache(filepath.Join(t.TempDir(), "token.json")).Save(nil); err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	cache := NewTokenCache(path)

	if err := cache.Save(&oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Delete() did not remove token file")
	}
	if err := cache.Delete(); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestTokenCache_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := NewTokenCache(path).Save(&oauth2.Token{AccessToken: "secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		t.Errorf("File permissions = %o, want no group/other access", mode)
	}
}

func TestDefaultTokenCache(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv(TokenFileEnvVar, "/tmp/custom/token.json")
		cache, err := DefaultTokenCache()
		if err != nil {
			t.Fatal(err)
		}
		if cache.Path() != "/tmp/custom/token.json" {
			t.Errorf("Path() = %q", cache.Path())
		}
	})

	t.Run("user config dir", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(TokenFileEnvVar, "")
		t.Setenv("XDG_CONFIG_HOME", dir)
		t.Setenv("HOME", dir)
		cache, err := DefaultTokenCache()
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(cache.Path()) != "token.json" || filepath.Base(filepath.Dir(cache.Path())) != "moodarc" {
			t.Errorf("Path() = %q, want .../moodarc/token.json", cache.Path())
		}
	})
}

func TestNewSpotifyAuth_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"both missing", "", ""},
		{"id missing", "", "secret"},
		{"secret missing", "id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpotifyAuth(Credentials{ClientID: tt.id, ClientSecret: tt.secret})
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("NewSpotifyAuth() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestNew_DefaultRedirect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	a, err := New(Credentials{ClientID: "id", ClientSecret: "secret"}, NewTokenCache(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.redirect.Host != "127.0.0.1:8080" || a.redirect.Path != "/callback" {
		t.Errorf("redirect = %v, want %s", a.redirect, DefaultCLIRedirectURI)
	}
	if a.TokenPath() != path {
		t.Errorf("TokenPath() = %q, want %q", a.TokenPath(), path)
	}
}

func TestNew_AuthURL(t *testing.T) {
	a, err := New(Credentials{
		ClientID:     "test-client-id",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:9999/auth/callback",
		Scopes:       []string{"playlist-modify-public", "user-read-email"},
	}, NewTokenCache(filepath.Join(t.TempDir(), "t.json")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	u, err := url.Parse(a.auth.AuthURL("abc"))
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "test-client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "abc" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("scope") != "playlist-modify-public user-read-email" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "http://localhost:9999/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestHandleCallback_Rejections(t *testing.T) {
	a, err := New(Credentials{ClientID: "id", ClientSecret: "secret"}, NewTokenCache(filepath.Join(t.TempDir(), "t.json")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"state mismatch", "state=wrong&code=x", ErrStateMismatch},
		{"spotify error", "state=good&error=access_denied", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenCh := make(chan *oauth2.Token, 1)
			errCh := make(chan error, 1)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil)

			a.handleCallback(rec, req, "good", tokenCh, errCh)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			select {
			case err := <-errCh:
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			default:
				t.Fatal("handleCallback did not report an error")
			}
			if len(tokenCh) != 0 {
				t.Error("handleCallback produced a token")
			}
		})
	}
}

func TestNeedsRefresh(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{"nil", nil, false},
		{"no expiry", &oauth2.Token{AccessToken: "a"}, false},
		{"fresh", &oauth2.Token{Expiry: time.Now().Add(time.Hour)}, false},
		{"expiring soon", &oauth2.Token{Expiry: time.Now().Add(30 * time.Second)}, true},
		{"expired", &oauth2.Token{Expiry: time.Now().Add(-time.Minute)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRefresh(tt.token); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresh_NoOp(t *testing.T) {
	a, err := NewSpotifyAuth(Credentials{ClientID: "id", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("NewSpotifyAuth() error = %v", err)
	}

	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{"not expiring", &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}},
		{"no refresh token", &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, refreshed, err := Refresh(context.Background(), a, tt.token)
			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if refreshed {
				t.Error("Refresh() reported a refresh")
			}
			if got != tt.token {
				t.Error("Refresh() should return the original token")
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if len(state1) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("GenerateState() length = %d, want 32", len(state1))
	}

	state2, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if state1 == state2 {
		t.Error("GenerateState() returned same value twice")
	}
}
