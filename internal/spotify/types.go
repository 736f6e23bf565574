package spotify

// Profile is the subset of the current user's account the app shows.
type Profile struct {
	ID          string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Playlist identifies a created playlist.
type Playlist struct {
	ID  string
	URL string
}

// TrackRef is a track to look up by name and artist.
type TrackRef struct {
	Name   string
	Artist string
}

// Resolved is the outcome of looking up a batch of TrackRefs.
type Resolved struct {
	// IDs holds the found track IDs in input order, misses skipped.
	IDs    []string
	Misses int
}
