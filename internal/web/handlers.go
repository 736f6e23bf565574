package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	zspotify "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/moodarc/internal/auth"
	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/config"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/mood"
	"github.com/justestif/moodarc/internal/playlist"
	"github.com/justestif/moodarc/internal/scoring"
	"github.com/justestif/moodarc/internal/selector"
	"github.com/justestif/moodarc/internal/spotify"
)

const (
	stateCookieName = "oauth_state"
	maxBodyBytes    = 64 << 10
	maxRegions      = 20
)

var validate = validator.New()

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	cfg       *config.Config
	auth      *spotifyauth.Authenticator // nil when Spotify is not configured
	sessions  SessionManager
	cookies   sessionCookies
	templates *Templates
	catalog   *catalog.Catalog
	regions   []catalog.Region
	service   *playlist.Service

	// apiClient builds the Spotify API client for a user token.
	apiClient func(ctx context.Context, token *oauth2.Token) *zspotify.Client
}

// NewHandlers creates a new Handlers instance. The catalog's mood regions are
// computed once here for the home page and the default catalog response.
func NewHandlers(cfg *config.Config, a *spotifyauth.Authenticator, sessions SessionManager, templates *Templates, c *catalog.Catalog, svc *playlist.Service) *Handlers {
	regions, err := c.MoodRegions(cfg.Catalog.Regions)
	if err != nil {
		logging.Warn().Err(err).Msg("computing mood regions")
	}

	h := &Handlers{
		cfg:      cfg,
		auth:     a,
		sessions: sessions,
		cookies: sessionCookies{
			secret: []byte(cfg.Security.SessionSecret),
			ttl:    cfg.Security.SessionTTL,
			secure: cfg.Security.CookieSecure,
		},
		templates: templates,
		catalog:   c,
		regions:   regions,
		service:   svc,
	}
	h.apiClient = func(ctx context.Context, token *oauth2.Token) *zspotify.Client {
		return zspotify.New(h.auth.Client(ctx, token))
	}
	return h
}

// ============================================================================
// JSON helpers
// ============================================================================

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// ============================================================================
// Pages and health
// ============================================================================

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{
		PageData: PageData{
			Title:       "moodarc",
			CurrentPath: r.URL.Path,
		},
		LoginEnabled: h.auth != nil,
		Catalog:      h.catalog.Summarize(),
		Regions:      h.regions,
		Modes:        scoring.Modes,
		FrontendURL:  h.cfg.Server.WebappURL(),
	}
	if session := h.session(r); session != nil {
		data.User = &UserData{ID: session.User.ID, Name: session.User.DisplayName}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "home", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("rendering home")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ============================================================================
// Auth
// ============================================================================

// Login clears any session and redirects to Spotify (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Spotify login is not configured.")
		return
	}

	if session := h.session(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}
	h.cookies.Clear(w)

	state, err := auth.GenerateState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state, spotifyauth.ShowDialog), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /auth/callback).
// Every failure redirects to the login page with an error code.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.Ctx(ctx)
	q := r.URL.Query()

	if h.auth == nil {
		h.loginError(w, r, "not_configured")
		return
	}

	if errMsg := q.Get("error"); errMsg != "" {
		h.loginError(w, r, errMsg)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.loginError(w, r, "state_mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if q.Get("code") == "" {
		h.loginError(w, r, "no_code")
		return
	}

	token, err := h.auth.Token(ctx, stateCookie.Value, r)
	if err != nil {
		log.Warn().Err(err).Msg("token exchange failed")
		h.loginError(w, r, "token_exchange_failed")
		return
	}

	profile, err := spotify.New(h.apiClient(ctx, token)).Profile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile fetch failed")
		h.loginError(w, r, "profile_fetch_failed")
		return
	}

	session, err := h.sessions.Create(ctx, token, profile)
	if err != nil {
		log.Error().Err(err).Msg("creating session")
		h.loginError(w, r, "session_failed")
		return
	}
	h.cookies.Set(w, session.ID)

	log.Info().Str("user_id", profile.ID).Msg("user logged in")
	http.Redirect(w, r, h.cfg.Server.WebappURL(), http.StatusTemporaryRedirect)
}

func (h *Handlers) loginError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.cfg.Server.LoginURL() + "?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

type meResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
}

// Me returns the logged-in user, refreshing the token first if it is about to
// expire (GET /auth/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if _, err := h.freshToken(r.Context(), session); err != nil {
		h.sessions.Delete(r.Context(), session.ID)
		h.cookies.Clear(w)
		writeError(w, http.StatusUnauthorized, "Session expired. Please log in again.")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		UserID:        session.User.ID,
		DisplayName:   session.User.DisplayName,
		Email:         session.User.Email,
	})
}

// Logout clears the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.session(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// session returns the request's session, or nil.
func (h *Handlers) session(r *http.Request) *Session {
	id, ok := h.cookies.Read(r)
	if !ok {
		return nil
	}
	return h.sessions.Get(r.Context(), id)
}

// freshToken refreshes the session token when it is close to expiry and
// persists the new one.
func (h *Handlers) freshToken(ctx context.Context, session *Session) (*oauth2.Token, error) {
	if h.auth == nil {
		return session.Token, nil
	}
	token, refreshed, err := auth.Refresh(ctx, h.auth, session.Token)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", session.User.ID).Msg("token refresh failed")
		return nil, err
	}
	if refreshed {
		h.sessions.UpdateToken(ctx, session.ID, token)
		session.Token = token
	}
	return token, nil
}

// ============================================================================
// Playlist generation
// ============================================================================

// GenerateRequest is the body of POST /generate-mood-arc-playlist.
type GenerateRequest struct {
	Text   string `json:"text" validate:"required,max=4000"`
	Goal   string `json:"goal" validate:"required,max=300"`
	Mode   string `json:"mode" validate:"omitempty,oneof=uplift focus calm gym sleep rage_release"`
	Stages *int   `json:"stages" validate:"omitempty,min=2,max=10"`
	Tracks *int   `json:"tracks" validate:"omitempty,min=10,max=60"`
	Public *bool  `json:"public"`
}

func (g GenerateRequest) toRequest() playlist.Request {
	req := playlist.Request{
		Text:   g.Text,
		Goal:   g.Goal,
		Mode:   scoring.Mode(g.Mode),
		Stages: mood.DefaultStages,
		Tracks: selector.DefaultTracks,
		Public: true,
	}
	if g.Stages != nil {
		req.Stages = *g.Stages
	}
	if g.Tracks != nil {
		req.Tracks = *g.Tracks
	}
	if g.Public != nil {
		req.Public = *g.Public
	}
	return req
}

// Generate builds a mood-arc playlist and, for logged-in users, publishes it.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body GenerateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var pub playlist.Publisher
	if session := h.session(r); session != nil && h.auth != nil {
		token, err := h.freshToken(ctx, session)
		if err == nil {
			pub = spotify.New(h.apiClient(ctx, token),
				spotify.WithSearchRate(h.cfg.Spotify.SearchRate, max(1, int(h.cfg.Spotify.SearchRate))),
				spotify.WithConcurrency(h.cfg.Spotify.SearchConcurrency),
			)
		}
	}

	res, err := h.service.Generate(ctx, body.toRequest(), pub)
	if err != nil {
		if errors.Is(err, mood.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("generating playlist")
		writeError(w, http.StatusBadGateway, "Mood scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return "invalid " + fe.Field() + ": must satisfy " + fe.Tag() + "=" + fe.Param()
		}
		return "invalid " + fe.Field() + ": " + fe.Tag()
	}
	return err.Error()
}

// ============================================================================
// Catalog and arc previews
// ============================================================================

type catalogResponse struct {
	catalog.Summary
	Regions []catalog.Region `json:"regions"`
}

// Catalog describes the track catalog (GET /api/catalog?regions=k).
func (h *Handlers) Catalog(w http.ResponseWriter, r *http.Request) {
	regions, err := h.requestedRegions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Summary: h.catalog.Summarize(), Regions: regions})
}

// Regions renders the mood region list fragment (GET /partials/regions?regions=k).
func (h *Handlers) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.requestedRegions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.RenderPartial(w, "region_list", regions); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("rendering regions")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// requestedRegions returns the cached regions, or recomputes them for ?regions=k.
func (h *Handlers) requestedRegions(r *http.Request) ([]catalog.Region, error) {
	raw := r.URL.Query().Get("regions")
	if raw == "" {
		return h.regions, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 || k > maxRegions {
		return nil, fmt.Errorf("regions must be an integer between 1 and %d", maxRegions)
	}
	return h.catalog.MoodRegions(k)
}

type arcRequest struct {
	Start  any `json:"start"`
	End    any `json:"end"`
	Stages int `json:"stages"`
}

type arcStage struct {
	Target mood.Vector `json:"target"`
	Mood   string      `json:"mood"`
}

type arcResponse struct {
	StagesCount int        `json:"stages_count"`
	Stages      []arcStage `json:"stages"`
}

// Arc previews an arc between explicit vectors without selecting tracks (POST /api/arc).
func (h *Handlers) Arc(w http.ResponseWriter, r *http.Request) {
	var body arcRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Stages == 0 {
		body.Stages = mood.DefaultStages
	}

	arc, err := mood.MakeArc(body.Start, body.End, body.Stages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stages := make([]arcStage, len(arc))
	for i, v := range arc {
		stages[i] = arcStage{Target: v, Mood: mood.Name(v)}
	}
	writeJSON(w, http.StatusOK, arcResponse{StagesCount: len(arc), Stages: stages})
}
