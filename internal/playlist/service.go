// Package playlist generates mood-arc playlists: scoring, arc planning, track
// selection and optional publishing to Spotify.
package playlist

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/metrics"
	"github.com/justestif/moodarc/internal/mood"
	"github.com/justestif/moodarc/internal/scoring"
	"github.com/justestif/moodarc/internal/selector"
	"github.com/justestif/moodarc/internal/spotify"
)

const (
	previewLimit       = 10
	noPublisherNote    = "Not authenticated with Spotify. Please log in."
	publishFailureNote = "Spotify playlist step failed: %v"
)

// Publisher writes a selection to a music service.
// *spotify.Client satisfies it.
type Publisher interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (spotify.Playlist, error)
	ResolveTrackIDs(ctx context.Context, refs []spotify.TrackRef) (spotify.Resolved, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
}

// Service handles playlist generation.
type Service struct {
	scorer   scoring.Scorer
	selector *selector.Selector
}

// New creates a new playlist service.
func New(scorer scoring.Scorer, sel *selector.Selector) *Service {
	return &Service{scorer: scorer, selector: sel}
}

// Request describes one playlist to generate.
type Request struct {
	Text   string
	Goal   string
	Mode   scoring.Mode
	Stages int
	Tracks int
	Public bool
}

// PreviewTrack is one row of the response preview. Stage is 1-based; 0 means the
// track was picked without an arc.
type PreviewTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Stage  int    `json:"stage,omitempty"`
}

// Result is the outcome of Generate.
type Result struct {
	RunID          string         `json:"run_id"`
	PlaylistURL    *string        `json:"playlist_url"`
	PlaylistName   string         `json:"playlist_name"`
	Mode           scoring.Mode   `json:"mode"`
	StartLabel     string         `json:"start_label"`
	EndLabel       string         `json:"end_label"`
	StartVector    mood.Vector    `json:"start_vector"`
	EndVector      mood.Vector    `json:"end_vector"`
	ArcTargets     []mood.Vector  `json:"arc_targets"`
	StagesCount    int            `json:"stages_count"`
	TracksPerStage []int          `json:"tracks_per_stage"`
	Requested      int            `json:"tracks_requested"`
	Selected       int            `json:"tracks_selected"`
	Added          int            `json:"tracks_added"`
	Missed         int            `json:"tracks_missed"`
	Preview        []PreviewTrack `json:"tracks_preview"`
	SpotifyNote    *string        `json:"spotify_note"`
	SafetyNote     *string        `json:"safety_note"`

	// Selection is the full tagged selection, for callers that print it.
	Selection selector.Result `json:"-"`
}

// PlaylistName formats the playlist title.
func PlaylistName(startLabel, endLabel string, mode scoring.Mode) string {
	return fmt.Sprintf("Mood Arc: %s -> %s (%s)", startLabel, endLabel, mode)
}

// Generate scores the request, plans the arc, selects tracks and, when pub is not
// nil, publishes the playlist. Publishing problems are reported in SpotifyNote
// rather than returned as errors.
func (s *Service) Generate(ctx context.Context, req Request, pub Publisher) (*Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithCorrelationID(ctx, runID[:8])
	log := logging.Ctx(ctx)

	mode := req.Mode.OrDefault()
	plan, err := s.scorer.Score(ctx, req.Text, req.Goal, mode)
	if err != nil {
		return nil, fmt.Errorf("scoring mood: %w", err)
	}

	arc, err := mood.MakeArc(plan.Start, plan.End, req.Stages)
	if err != nil {
		return nil, fmt.Errorf("planning arc: %w", err)
	}

	sel := s.selector.PickTracksForArc(ctx, arc, req.Tracks)

	res := &Result{
		RunID:          runID,
		PlaylistName:   PlaylistName(plan.StartLabel, plan.EndLabel, mode),
		Mode:           mode,
		StartLabel:     plan.StartLabel,
		EndLabel:       plan.EndLabel,
		StartVector:    arc[0],
		EndVector:      arc[len(arc)-1],
		ArcTargets:     arc,
		StagesCount:    len(arc),
		TracksPerStage: sel.StageCounts(),
		Requested:      selector.ClampTracks(req.Tracks),
		Selected:       len(sel.Picks),
		Preview:        preview(sel, previewLimit),
		Selection:      sel,
	}
	if plan.SafetyNote != "" {
		res.SafetyNote = &plan.SafetyNote
	}

	log.Info().
		Str("mode", string(mode)).
		Str("scorer", plan.Source).
		Int("stages", len(arc)).
		Int("requested", res.Requested).
		Int("selected", res.Selected).
		Msg("playlist selection complete")

	if pub == nil {
		note := noPublisherNote
		res.SpotifyNote = &note
		return res, nil
	}

	if err := publish(ctx, pub, req.Public, res); err != nil {
		log.Warn().Err(err).Msg("publishing playlist failed")
		note := fmt.Sprintf(publishFailureNote, err)
		res.SpotifyNote = &note
	}
	return res, nil
}

func publish(ctx context.Context, pub Publisher, public bool, res *Result) error {
	description := fmt.Sprintf("A %d-stage mood arc from %s to %s.", res.StagesCount, res.StartLabel, res.EndLabel)
	pl, err := pub.CreatePlaylist(ctx, res.PlaylistName, description, public)
	if err != nil {
		return err
	}
	if pl.URL != "" {
		res.PlaylistURL = &pl.URL
	}
	metrics.PlaylistsCreated.Inc()

	refs := make([]spotify.TrackRef, len(res.Selection.Picks))
	for i, p := range res.Selection.Picks {
		refs[i] = spotify.TrackRef{Name: p.Track.Name, Artist: p.Track.Artist}
	}
	resolved, err := pub.ResolveTrackIDs(ctx, refs)
	if err != nil {
		return err
	}
	res.Missed = resolved.Misses

	if err := pub.AddTracksToPlaylist(ctx, pl.ID, resolved.IDs); err != nil {
		return err
	}
	res.Added = len(resolved.IDs)
	return nil
}

func preview(sel selector.Result, limit int) []PreviewTrack {
	n := min(limit, len(sel.Picks))
	out := make([]PreviewTrack, n)
	for i, p := range sel.Picks[:n] {
		out[i] = PreviewTrack{
			Name:   p.Track.Name,
			Artist: p.Track.Artist,
			Stage:  max(0, p.Stage+1),
		}
	}
	return out
}
