// Package cli implements the moodarc commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/config"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/playlist"
	"github.com/justestif/moodarc/internal/scoring"
	"github.com/justestif/moodarc/internal/selector"
)

// app carries state shared by every command once the root pre-run has loaded it.
type app struct {
	configPath string
	dataset    string
	logLevel   string

	cfg *config.Config
}

// NewRootCmd builds the moodarc command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "moodarc",
		Short:         "Mood-arc playlist generator",
		Long:          "moodarc turns a description of how you feel and where you want to be into a playlist that moves gradually between the two.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&a.dataset, "dataset", "", "Track dataset CSV (overrides SPOTIFY_DATASET_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newPlanCmd(a),
		newCatalogCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
	)
	return root
}

// Execute runs the root command and reports any error on stderr.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) load() error {
	if a.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, a.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.dataset != "" {
		cfg.Catalog.Path = a.dataset
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	a.cfg = cfg
	return nil
}

func (a *app) loadCatalog() (*catalog.Catalog, error) {
	c, err := catalog.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logging.Info().
		Str("path", a.cfg.Catalog.Path).
		Int("tracks", c.Len()).
		Msg("catalog loaded")
	return c, nil
}

func (a *app) newScorer() scoring.Scorer {
	s := scoring.NewOpenAIScorer(scoring.OpenAIConfig{
		APIKey:  a.cfg.OpenAI.APIKey,
		Model:   a.cfg.OpenAI.Model,
		BaseURL: a.cfg.OpenAI.BaseURL,
		Timeout: a.cfg.OpenAI.Timeout,
	})
	if !s.Enabled() {
		logging.Warn().Msg("OPENAI_API_KEY not set, using local fallback scoring")
	}
	return s
}

func (a *app) newSelector(c *catalog.Catalog, seed uint64) *selector.Selector {
	opts := []selector.Option{
		selector.WithTolerances(a.cfg.Selector.BaseTolerance, a.cfg.Selector.MaxTolerance, a.cfg.Selector.Step),
	}
	if seed == 0 {
		seed = a.cfg.Selector.Seed
	}
	if seed != 0 {
		opts = append(opts, selector.WithSeed(seed))
	}
	return selector.New(c, opts...)
}

func (a *app) newService(c *catalog.Catalog, seed uint64) *playlist.Service {
	return playlist.New(a.newScorer(), a.newSelector(c, seed))
}
