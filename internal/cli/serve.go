package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/justestif/moodarc/internal/db"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/web"
	webfs "github.com/justestif/moodarc/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	c, err := a.loadCatalog()
	if err != nil {
		return err
	}

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	deps := web.Deps{
		Config:      a.cfg,
		Catalog:     c,
		Service:     a.newService(c, 0),
		TemplatesFS: templates,
		StaticFS:    static,
	}

	if a.cfg.Database.URL != "" {
		database, err := db.New(ctx, a.cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		deps.Sessions = web.NewDBSessionStore(database, a.cfg.Security.SessionTTL)
		logging.Info().Msg("using database session store")
	}

	server, err := web.NewServer(deps)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return server.Run(ctx)
}
