package spotify

import (
	"context"
	"fmt"
	"slices"

	"github.com/zmb3/spotify/v2"
)

const (
	// addBatchSize is the most track URIs one add-items request may carry.
	addBatchSize = 100

	// maxDescriptionRunes is the playlist description limit.
	maxDescriptionRunes = 300
)

// CreatePlaylist creates the mood-arc playlist in the listener's library. The
// description is clipped to what Spotify accepts.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (Playlist, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return Playlist{}, err
	}

	created, err := c.api.CreatePlaylistForUser(ctx, userID, name, clipDescription(description), public, false)
	if err != nil {
		return Playlist{}, fmt.Errorf("creating playlist %q: %w", name, err)
	}
	return Playlist{ID: created.ID.String(), URL: created.ExternalURLs["spotify"]}, nil
}

// AddTracksToPlaylist appends the resolved arc in order, so stage order
// survives on Spotify.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	ids := make([]spotify.ID, 0, len(trackIDs))
	for _, id := range trackIDs {
		ids = append(ids, spotify.ID(id))
	}

	added := 0
	for batch := range slices.Chunk(ids, addBatchSize) {
		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return fmt.Errorf("adding tracks %d-%d of %d: %w", added+1, added+len(batch), len(ids), err)
		}
		added += len(batch)
	}
	return nil
}

func clipDescription(s string) string {
	r := []rune(s)
	if len(r) <= maxDescriptionRunes {
		return s
	}
	return string(r[:maxDescriptionRunes-1]) + "…"
}
