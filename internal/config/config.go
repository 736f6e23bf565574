// Package config loads moodarc configuration from defaults, an optional YAML file
// and environment variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrSpotifyNotConfigured is returned by RequireSpotify when OAuth credentials are missing.
var ErrSpotifyNotConfigured = errors.New("spotify credentials not configured")

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Selector SelectorConfig `koanf:"selector"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	FrontendURL     string        `koanf:"frontend_url" validate:"required,url"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SpotifyConfig holds OAuth client settings and search throttling.
type SpotifyConfig struct {
	ClientID          string   `koanf:"client_id"`
	ClientSecret      string   `koanf:"client_secret"`
	RedirectURI       string   `koanf:"redirect_uri" validate:"omitempty,url"`
	Scopes            []string `koanf:"scopes" validate:"min=1,dive,required"`
	SearchRate        float64  `koanf:"search_rate" validate:"gt=0"`
	SearchConcurrency int      `koanf:"search_concurrency" validate:"min=1,max=32"`
}

// OpenAIConfig holds language model settings. An empty key disables the API.
type OpenAIConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model" validate:"required"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// CatalogConfig locates the track dataset.
type CatalogConfig struct {
	Path    string `koanf:"path" validate:"required"`
	Regions int    `koanf:"regions" validate:"min=1,max=20"`
}

// SelectorConfig tunes stage selection. Seed 0 means a fresh random seed per run.
type SelectorConfig struct {
	BaseTolerance float64 `koanf:"base_tolerance" validate:"gt=0,lte=1"`
	MaxTolerance  float64 `koanf:"max_tolerance" validate:"gtefield=BaseTolerance,lte=1"`
	Step          float64 `koanf:"step" validate:"gt=0"`
	Seed          uint64  `koanf:"seed"`
}

// DatabaseConfig enables PostgreSQL-backed sessions when URL is set.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SecurityConfig holds session, CORS and rate limit settings.
type SecurityConfig struct {
	SessionSecret     string        `koanf:"session_secret" validate:"min=8"`
	SessionTTL        time.Duration `koanf:"session_ttl" validate:"gt=0"`
	CookieSecure      bool          `koanf:"cookie_secure"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// RequireSpotify checks that everything needed for the web OAuth flow is set.
func (c *Config) RequireSpotify() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.Spotify.RedirectURI == "" {
		missing = append(missing, "SPOTIFY_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrSpotifyNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// LoginURL is the frontend page OAuth errors redirect to.
func (s ServerConfig) LoginURL() string {
	return strings.TrimRight(s.FrontendURL, "/") + "/login.html"
}

// WebappURL is the frontend page a successful login redirects to.
func (s ServerConfig) WebappURL() string {
	return strings.TrimRight(s.FrontendURL, "/") + "/webapp.html"
}
