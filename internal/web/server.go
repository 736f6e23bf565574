// Package web provides the moodarc HTTP server: the JSON API, Spotify login,
// the home page and the bundled frontend.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/moodarc/internal/auth"
	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/config"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/metrics"
	"github.com/justestif/moodarc/internal/playlist"
)

const sessionSweepInterval = 10 * time.Minute

// Deps are the collaborators the server is built from.
type Deps struct {
	Config      *config.Config
	Catalog     *catalog.Catalog
	Service     *playlist.Service
	Sessions    SessionManager // nil selects the in-memory store
	TemplatesFS fs.FS
	StaticFS    fs.FS
}

// Server is the HTTP server for the web application.
type Server struct {
	cfg      *config.Config
	router   chi.Router
	server   *http.Server
	sessions SessionManager
	handlers *Handlers
}

// NewServer creates a new web server.
func NewServer(deps Deps) (*Server, error) {
	cfg := deps.Config

	var spotifyAuth *spotifyauth.Authenticator
	if err := cfg.RequireSpotify(); err == nil {
		spotifyAuth, err = auth.NewSpotifyAuth(auth.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURI:  cfg.Spotify.RedirectURI,
			Scopes:       cfg.Spotify.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("creating spotify authenticator: %w", err)
		}
	} else {
		logging.Warn().Err(err).Msg("Spotify login disabled")
	}

	templates, err := NewTemplates(deps.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionStore(cfg.Security.SessionTTL)
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		sessions: sessions,
		handlers: NewHandlers(cfg, spotifyAuth, sessions, templates, deps.Catalog, deps.Service),
	}

	s.setupMiddleware()
	s.setupRoutes(deps.StaticFS)

	s.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// generation may wait on the language model and Spotify search
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(recordMetrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(s.cfg.Security.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes(staticFS fs.FS) {
	h := s.handlers

	fileServer := http.FileServer(http.FS(staticFS))
	s.router.Handle("/frontend/*", http.StripPrefix("/frontend/", fileServer))

	s.router.Get("/", h.Home)
	s.router.Get("/health", h.Health)
	s.router.Get("/partials/regions", h.Regions)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
	})

	limit := s.rateLimit()
	s.router.With(limit).Post("/generate-mood-arc-playlist", h.Generate)
	s.router.Route("/api", func(r chi.Router) {
		r.With(limit).Post("/generate", h.Generate)
		r.Get("/catalog", h.Catalog)
		r.Post("/arc", h.Arc)
	})
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	sec := s.cfg.Security
	if sec.RateLimitDisabled || sec.RateLimitRequests == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		sec.RateLimitRequests,
		sec.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, slow down.")
		}),
	)
}

// allowedOrigins drops the wildcard: credentials are allowed, so every origin
// must be listed explicitly.
func allowedOrigins(origins []string) []string {
	return slices.DeleteFunc(slices.Clone(origins), func(o string) bool { return o == "*" })
}

// recordMetrics observes request duration by route pattern.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, s.sessions, sessionSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("starting server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}
