package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/moodarc/internal/metrics"
)

// SearchQuery builds a field-filtered search for one track.
func SearchQuery(name, artist string) string {
	clean := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	}
	return fmt.Sprintf(`track:"%s" artist:"%s"`, clean(name), clean(artist))
}

// SearchTrackID returns the ID of the best match for name and artist, or "" when
// Spotify has no match.
func (c *Client) SearchTrackID(ctx context.Context, name, artist string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	res, err := c.api.Search(ctx, SearchQuery(name, artist), spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return "", fmt.Errorf("searching %q by %q: %w", name, artist, err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return "", nil
	}
	return res.Tracks.Tracks[0].ID.String(), nil
}

// ResolveTrackIDs looks up every ref concurrently, bounded by the client's
// concurrency and search rate. Found IDs keep the input order. The first search
// error cancels the rest.
func (c *Client) ResolveTrackIDs(ctx context.Context, refs []TrackRef) (Resolved, error) {
	found := make([]string, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			id, err := c.SearchTrackID(ctx, ref.Name, ref.Artist)
			if err != nil {
				return err
			}
			found[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Resolved{}, err
	}

	var out Resolved
	for _, id := range found {
		if id == "" {
			out.Misses++
			continue
		}
		out.IDs = append(out.IDs, id)
	}
	metrics.SpotifySearchMisses.Add(float64(out.Misses))
	return out, nil
}
