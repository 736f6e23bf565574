package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Dataset column names.
const (
	ColTrackID          = "track_id"
	ColTrackName        = "track_name"
	ColArtistName       = "artist_name"
	ColEnergy           = "energy"
	ColValence          = "valence"
	ColDanceability     = "danceability"
	ColTempo            = "tempo"
	ColAcousticness     = "acousticness"
	ColInstrumentalness = "instrumentalness"
)

// RequiredColumns must all be present in a dataset header.
var RequiredColumns = []string{
	ColTrackName,
	ColArtistName,
	ColEnergy,
	ColValence,
	ColDanceability,
	ColTempo,
	ColAcousticness,
	ColInstrumentalness,
}

// Load reads a CSV dataset from path and builds a catalog.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Read parses CSV data with a header row and builds a catalog.
// Returns ErrMissingColumns if any required column is absent.
// Empty feature cells are kept as NaN so those tracks never match a filter.
func Read(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		shown := columns[:min(len(columns), 60)]
		return nil, fmt.Errorf("%w: %s (found: %s)", ErrMissingColumns,
			strings.Join(missing, ", "), strings.Join(shown, ", "))
	}

	idCol, hasID := index[ColTrackID]

	var tracks []Track
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		cell := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		t := Track{
			Name:   cell(ColTrackName),
			Artist: cell(ColArtistName),
		}
		if hasID && idCol < len(record) {
			if id := strings.TrimSpace(record[idCol]); !isMissing(id) {
				t.ID = id
			}
		}

		fields := []struct {
			col string
			dst *float64
		}{
			{ColEnergy, &t.Energy},
			{ColValence, &t.Valence},
			{ColDanceability, &t.Danceability},
			{ColTempo, &t.Tempo},
			{ColAcousticness, &t.Acousticness},
			{ColInstrumentalness, &t.Instrumentalness},
		}
		for _, fld := range fields {
			v, err := parseFeature(cell(fld.col))
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, fld.col, err)
			}
			*fld.dst = v
		}

		tracks = append(tracks, t)
	}

	return New(tracks)
}

var missingMarkers = []string{"nan", "NaN", "NA", "N/A", "null", "NULL"}

// isMissing reports whether a trimmed cell holds no value.
func isMissing(s string) bool {
	return s == "" || slices.Contains(missingMarkers, s)
}

// parseFeature parses a numeric cell; missing cells become NaN.
func parseFeature(s string) (float64, error) {
	if isMissing(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", s, err)
	}
	return v, nil
}
