package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/moodarc/config.yaml",
}

// ConfigPathEnvVar names an explicit config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultScopes are the Spotify scopes requested at login.
var DefaultScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-email",
	"user-read-private",
}

// Default returns the built-in configuration before any file or environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			FrontendURL:     "http://localhost:8000/frontend",
			ShutdownTimeout: 10 * time.Second,
		},
		Spotify: SpotifyConfig{
			Scopes:            DefaultScopes,
			SearchRate:        10,
			SearchConcurrency: 4,
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			Timeout: 20 * time.Second,
		},
		Catalog: CatalogConfig{
			Path:    "data/SpotifyTracksData.csv",
			Regions: 6,
		},
		Selector: SelectorConfig{
			BaseTolerance: 0.12,
			MaxTolerance:  0.28,
			Step:          0.04,
		},
		Security: SecurityConfig{
			SessionSecret:     "dev-secret-change-me",
			SessionTTL:        7 * 24 * time.Hour,
			CORSOrigins:       []string{"http://localhost:8000", "http://localhost:3000"},
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the config file (if any), then
// environment variables. The result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// CSV_PATH is the older name for the dataset path and loses to SPOTIFY_DATASET_PATH.
	if legacy := os.Getenv("CSV_PATH"); legacy != "" && os.Getenv("SPOTIFY_DATASET_PATH") == "" {
		if err := k.Set("catalog.path", legacy); err != nil {
			return nil, fmt.Errorf("setting catalog.path: %w", err)
		}
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("processing slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// processSliceFields turns delimited strings from env or YAML into lists.
func processSliceFields(k *koanf.Koanf) error {
	fields := []struct {
		path  string
		split func(string) []string
	}{
		{"security.cors_origins", SplitList},
		{"spotify.scopes", ParseScopes},
	}
	for _, f := range fields {
		s, ok := k.Get(f.path).(string)
		if !ok {
			continue
		}
		if err := k.Set(f.path, f.split(s)); err != nil {
			return fmt.Errorf("setting %s: %w", f.path, err)
		}
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseScopes accepts comma- or space-separated scopes and removes duplicates,
// keeping first-seen order.
func ParseScopes(s string) []string {
	var out []string
	for _, scope := range strings.Fields(strings.ReplaceAll(s, ",", " ")) {
		if !slices.Contains(out, scope) {
			out = append(out, scope)
		}
	}
	return out
}

// envValue maps a variable to its config key. Empty variables are skipped so
// they never clear a default or file value.
func envValue(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	return envTransformFunc(key), value
}

func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_addr":        "server.addr",
		"frontend_url":     "server.frontend_url",
		"shutdown_timeout": "server.shutdown_timeout",

		// Spotify
		"spotify_client_id":          "spotify.client_id",
		"spotify_client_secret":      "spotify.client_secret",
		"spotify_redirect_uri":       "spotify.redirect_uri",
		"spotify_scopes":             "spotify.scopes",
		"spotify_search_rate":        "spotify.search_rate",
		"spotify_search_concurrency": "spotify.search_concurrency",

		// OpenAI
		"openai_api_key":  "openai.api_key",
		"openai_model":    "openai.model",
		"openai_base_url": "openai.base_url",
		"openai_timeout":  "openai.timeout",

		// Catalog and selection
		"spotify_dataset_path":    "catalog.path",
		"catalog_regions":         "catalog.regions",
		"selector_base_tolerance": "selector.base_tolerance",
		"selector_max_tolerance":  "selector.max_tolerance",
		"selector_step":           "selector.step",
		"selector_seed":           "selector.seed",

		// Database
		"database_url": "database.url",

		// Security
		"session_secret":      "security.session_secret",
		"session_ttl":         "security.session_ttl",
		"cookie_secure":       "security.cookie_secure",
		"cors_origins":        "security.cors_origins",
		"rate_limit_requests": "security.rate_limit_requests",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
