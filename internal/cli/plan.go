package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/justestif/moodarc/internal/auth"
	"github.com/justestif/moodarc/internal/config"
	"github.com/justestif/moodarc/internal/mood"
	"github.com/justestif/moodarc/internal/playlist"
	"github.com/justestif/moodarc/internal/scoring"
	"github.com/justestif/moodarc/internal/selector"
	"github.com/justestif/moodarc/internal/spotify"
)

type planOptions struct {
	text        string
	goal        string
	mode        string
	stages      int
	tracks      int
	seed        uint64
	publish     bool
	private     bool
	redirectURI string
	asJSON      bool
}

func newPlanCmd(a *app) *cobra.Command {
	var opts planOptions

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a mood arc and select tracks from the local catalog",
		Long: `Plan scores where you are and where you want to be, builds the arc between
the two and picks tracks for each stage. Nothing is sent to Spotify unless
--publish is given.`,
		Example: `  moodarc plan --text "tired and scattered" --goal "focused" --mode focus
  moodarc plan --text "angry" --goal "calm" --stages 7 --tracks 40 --seed 42 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.plan(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.text, "text", "t", "", "How you feel right now")
	f.StringVarP(&opts.goal, "goal", "g", "", "How you want to feel")
	f.StringVarP(&opts.mode, "mode", "m", string(scoring.DefaultMode), "Mode: uplift, focus, calm, gym, sleep, rage_release")
	f.IntVar(&opts.stages, "stages", mood.DefaultStages, "Number of arc stages (2-10)")
	f.IntVar(&opts.tracks, "tracks", selector.DefaultTracks, "Number of tracks (10-60)")
	f.Uint64Var(&opts.seed, "seed", 0, "Random seed for a reproducible selection (0 picks a fresh one)")
	f.BoolVar(&opts.publish, "publish", false, "Create the playlist on Spotify")
	f.BoolVar(&opts.private, "private", false, "Make the published playlist private")
	f.StringVar(&opts.redirectURI, "redirect-uri", auth.DefaultCLIRedirectURI, "OAuth redirect URI for the local login server")
	f.BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func (a *app) plan(ctx context.Context, out io.Writer, opts planOptions) error {
	mode, err := scoring.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	c, err := a.loadCatalog()
	if err != nil {
		return err
	}

	var pub playlist.Publisher
	if opts.publish {
		client, err := a.spotifyClient(ctx, opts.redirectURI)
		if err != nil {
			return err
		}
		pub = client
	}

	res, err := a.newService(c, opts.seed).Generate(ctx, playlist.Request{
		Text:   opts.text,
		Goal:   opts.goal,
		Mode:   mode,
		Stages: opts.stages,
		Tracks: opts.tracks,
		Public: !opts.private,
	}, pub)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(planJSON(res))
	}
	printPlan(out, res, opts.publish)
	return nil
}

func (a *app) spotifyClient(ctx context.Context, redirectURI string) (*spotify.Client, error) {
	authenticator, err := a.authenticator(redirectURI)
	if err != nil {
		return nil, err
	}
	api, err := authenticator.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating with Spotify: %w", err)
	}
	return spotify.New(api,
		spotify.WithSearchRate(a.cfg.Spotify.SearchRate, max(1, int(a.cfg.Spotify.SearchRate))),
		spotify.WithConcurrency(a.cfg.Spotify.SearchConcurrency),
	), nil
}

// authenticator builds the local-callback OAuth flow. Only the client ID and
// secret are required; the redirect URI comes from the flag, not the web config.
func (a *app) authenticator(redirectURI string) (*auth.Authenticator, error) {
	sp := a.cfg.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return nil, fmt.Errorf("%w: set SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET", config.ErrSpotifyNotConfigured)
	}
	cache, err := auth.DefaultTokenCache()
	if err != nil {
		return nil, err
	}
	return auth.New(auth.Credentials{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURI:  redirectURI,
		Scopes:       sp.Scopes,
	}, cache)
}

type jsonPick struct {
	Stage  int    `json:"stage"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

type jsonPlan struct {
	*playlist.Result
	Tracks []jsonPick `json:"tracks"`
}

func planJSON(res *playlist.Result) jsonPlan {
	picks := make([]jsonPick, len(res.Selection.Picks))
	for i, p := range res.Selection.Picks {
		picks[i] = jsonPick{Stage: max(0, p.Stage+1), Name: p.Track.Name, Artist: p.Track.Artist}
	}
	return jsonPlan{Result: res, Tracks: picks}
}

// energyRamp runs from cool to warm ANSI-256 colors.
var energyRamp = []string{"63", "69", "75", "81", "114", "150", "186", "222", "215", "209"}

func energySwatch(r *lipgloss.Renderer, v mood.Vector) string {
	i := min(len(energyRamp)-1, int(v.Get(mood.Energy)*float64(len(energyRamp))))
	return r.NewStyle().Foreground(lipgloss.Color(energyRamp[i])).Render("■■■")
}

func printPlan(out io.Writer, res *playlist.Result, published bool) {
	r := lipgloss.NewRenderer(out)
	title := r.NewStyle().Bold(true)
	faint := r.NewStyle().Faint(true)

	fmt.Fprintln(out, title.Render(res.PlaylistName))
	fmt.Fprintf(out, "Mode: %s   Stages: %d   Tracks: %d/%d\n", res.Mode, res.StagesCount, res.Selected, res.Requested)
	if res.SafetyNote != nil {
		fmt.Fprintln(out, faint.Render("Note: "+*res.SafetyNote))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tMOOD\tVAL\tENERGY\tDANCE\tTEMPO\tACOUSTIC\tINSTR\tTRACKS\t")
	for i, v := range res.ArcTargets {
		n := 0
		if i < len(res.TracksPerStage) {
			n = res.TracksPerStage[i]
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%s\n",
			i+1, mood.Name(v),
			v[mood.Valence], v[mood.Energy], v[mood.Danceability],
			v[mood.Tempo], v[mood.Acousticness], v[mood.Instrumentalness],
			n, energySwatch(r, v))
	}
	_ = tw.Flush()
	fmt.Fprintln(out)

	for i, p := range res.Selection.Picks {
		stage := "-"
		if p.Stage >= 0 {
			stage = fmt.Sprintf("%d", p.Stage+1)
		}
		fmt.Fprintf(out, "%3d. [%s] %s - %s\n", i+1, stage, p.Track.Name, p.Track.Artist)
	}

	if short := res.Selection.Short(); short > 0 {
		fmt.Fprintf(out, "\nCatalog ran out: %d tracks short.\n", short)
	}

	if !published {
		return
	}
	fmt.Fprintln(out)
	if res.PlaylistURL != nil {
		fmt.Fprintf(out, "Playlist: %s\n", title.Render(*res.PlaylistURL))
	}
	fmt.Fprintf(out, "Added %d tracks, %d not found on Spotify.\n", res.Added, res.Missed)
	if res.SpotifyNote != nil {
		fmt.Fprintln(out, faint.Render(*res.SpotifyNote))
	}
}
