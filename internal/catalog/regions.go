package catalog

import (
	"fmt"
	"math"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/moodarc/internal/mood"
)

const (
	// DefaultRegions is the default number of mood regions.
	DefaultRegions = 6

	// maxRegionSample caps how many tracks feed k-means on large catalogs.
	maxRegionSample = 5000
)

// Region is a cluster of catalog tracks grouped by feature similarity.
type Region struct {
	Name     string        `json:"name"`
	Centroid mood.Vector   `json:"centroid"`
	Size     int           `json:"size"`
	Category mood.Category `json:"category"`
}

// trackObservation wraps a Track to implement clusters.Observation.
type trackObservation struct {
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// MoodRegions partitions the catalog into k regions of similar audio features
// using k-means over all six normalized features. Large catalogs are sampled
// with a fixed stride. Regions are sorted by size, largest first.
// Sizes refer to the sampled tracks.
func (c *Catalog) MoodRegions(k int) ([]Region, error) {
	if k <= 0 {
		k = DefaultRegions
	}

	stride := max(1, len(c.tracks)/maxRegionSample)

	var obs clusters.Observations
	for i := 0; i < len(c.tracks); i += stride {
		v := c.tracks[i].features
		if hasNaN(v) {
			continue
		}
		obs = append(obs, trackObservation{coords: coordinates(v)})
	}

	if len(obs) < k {
		return nil, fmt.Errorf("need at least %d tracks with complete features, have %d", k, len(obs))
	}

	km := kmeans.New()
	result, err := km.Partition(obs, k)
	if err != nil {
		return nil, fmt.Errorf("k-means clustering: %w", err)
	}

	regions := make([]Region, 0, len(result))
	for _, cluster := range result {
		if len(cluster.Observations) == 0 {
			continue
		}
		var centroid mood.Vector
		for i := range centroid {
			centroid[i] = mood.Clamp01(cluster.Center[i])
		}
		regions = append(regions, Region{
			Name:     mood.Name(centroid),
			Centroid: centroid,
			Size:     len(cluster.Observations),
			Category: mood.Categorize(centroid),
		})
	}

	slices.SortFunc(regions, func(a, b Region) int {
		return b.Size - a.Size
	})

	return regions, nil
}

func coordinates(v mood.Vector) clusters.Coordinates {
	coords := make(clusters.Coordinates, mood.NumFeatures)
	for i := range v {
		coords[i] = v[i]
	}
	return coords
}

func hasNaN(v mood.Vector) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
