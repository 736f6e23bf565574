// Package catalog holds the immutable in-memory table of tracks and their audio features.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/justestif/moodarc/internal/mood"
)

// minTempoRange bounds the tempo normalization divisor away from zero.
const minTempoRange = 1e-9

var (
	// ErrMissingColumns is returned when the dataset lacks a required column.
	ErrMissingColumns = errors.New("catalog missing required columns")

	// ErrEmpty is returned when a catalog would contain no tracks.
	ErrEmpty = errors.New("catalog has no tracks")
)

// Track is one catalog row. Feature values are the raw dataset columns;
// Tempo is in BPM.
type Track struct {
	ID               string
	Name             string
	Artist           string
	Energy           float64
	Valence          float64
	Danceability     float64
	Tempo            float64
	Acousticness     float64
	Instrumentalness float64

	// features is filled in by New with tempo normalized to [0,1].
	features mood.Vector
}

// Key returns the identity used for de-duplication: the track ID when present,
// otherwise the name and artist pair.
func (t Track) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name + "||" + t.Artist
}

// Features returns the track's feature vector with normalized tempo.
// Only meaningful for tracks obtained from a Catalog.
func (t Track) Features() mood.Vector {
	return t.features
}

// Catalog is a read-only table of tracks. It is safe for concurrent use
// once constructed; nothing mutates it after New returns.
type Catalog struct {
	tracks   []Track
	tempoMin float64
	tempoMax float64
}

// New builds a catalog from tracks, computing the global tempo range and
// each track's normalized feature vector. The input slice is copied.
func New(tracks []Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{
		tracks:   make([]Track, len(tracks)),
		tempoMin: math.Inf(1),
		tempoMax: math.Inf(-1),
	}
	copy(c.tracks, tracks)

	// NaN tempos (empty cells) are skipped when computing the range
	for _, t := range c.tracks {
		if math.IsNaN(t.Tempo) {
			continue
		}
		c.tempoMin = math.Min(c.tempoMin, t.Tempo)
		c.tempoMax = math.Max(c.tempoMax, t.Tempo)
	}
	if math.IsInf(c.tempoMin, 1) {
		c.tempoMin, c.tempoMax = 0, 0
	}

	for i := range c.tracks {
		t := &c.tracks[i]
		t.features = mood.Vector{
			mood.Valence:          t.Valence,
			mood.Energy:           t.Energy,
			mood.Danceability:     t.Danceability,
			mood.Tempo:            c.normalizeTempo(t.Tempo),
			mood.Acousticness:     t.Acousticness,
			mood.Instrumentalness: t.Instrumentalness,
		}
	}

	return c, nil
}

func (c *Catalog) normalizeTempo(bpm float64) float64 {
	return (bpm - c.tempoMin) / math.Max(minTempoRange, c.tempoMax-c.tempoMin)
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// At returns the track at index i.
func (c *Catalog) At(i int) Track {
	return c.tracks[i]
}

// Tracks returns a copy of all tracks in catalog order.
func (c *Catalog) Tracks() []Track {
	out := make([]Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// TempoRange returns the minimum and maximum tempo in BPM.
func (c *Catalog) TempoRange() (float64, float64) {
	return c.tempoMin, c.tempoMax
}

// UniqueKeys returns the number of distinct identity keys.
func (c *Catalog) UniqueKeys() int {
	seen := make(map[string]struct{}, len(c.tracks))
	for _, t := range c.tracks {
		seen[t.Key()] = struct{}{}
	}
	return len(seen)
}

// Filter returns the indices of every track whose features are all strictly
// within tol of target. Tempo is compared on the normalized scale.
// Indices are returned in catalog order.
func (c *Catalog) Filter(target mood.Vector, tol float64) []int {
	var out []int
	for i := range c.tracks {
		if within(c.tracks[i].features, target, tol) {
			out = append(out, i)
		}
	}
	return out
}

// within reports whether every feature of v is strictly closer than tol to target.
// NaN features never match.
func within(v, target mood.Vector, tol float64) bool {
	for f := range v {
		if !(math.Abs(v[f]-target[f]) < tol) {
			return false
		}
	}
	return true
}

// Summary describes the catalog for display.
type Summary struct {
	Tracks     int     `json:"tracks"`
	UniqueKeys int     `json:"unique_keys"`
	TempoMin   float64 `json:"tempo_min"`
	TempoMax   float64 `json:"tempo_max"`
}

// Summarize returns size and tempo statistics.
func (c *Catalog) Summarize() Summary {
	return Summary{
		Tracks:     c.Len(),
		UniqueKeys: c.UniqueKeys(),
		TempoMin:   c.tempoMin,
		TempoMax:   c.tempoMax,
	}
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("%d tracks (%d unique), tempo %.1f-%.1f BPM", s.Tracks, s.UniqueKeys, s.TempoMin, s.TempoMax)
}
