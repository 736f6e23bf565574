// Package mood defines mood feature vectors and plans arcs between them.
package mood

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"
)

// ErrInvalidInput is returned when a mood vector argument is not a mapping at all.
// Partial or out-of-range mappings are repaired instead.
var ErrInvalidInput = errors.New("invalid input")

// Feature identifies one axis of a mood vector.
type Feature int

// The six audio features a mood vector is made of.
const (
	Valence Feature = iota
	Energy
	Danceability
	Tempo
	Acousticness
	Instrumentalness
)

// NumFeatures is the number of axes in a Vector.
const NumFeatures = 6

// Neutral is the value used for any feature missing from the input.
const Neutral = 0.5

// AllFeatures lists every feature in canonical order.
var AllFeatures = [NumFeatures]Feature{Valence, Energy, Danceability, Tempo, Acousticness, Instrumentalness}

var featureNames = [NumFeatures]string{
	"valence",
	"energy",
	"danceability",
	"tempo",
	"acousticness",
	"instrumentalness",
}

// String returns the feature's wire name, e.g. "valence".
func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// ParseFeature maps a wire name back to its Feature.
func ParseFeature(name string) (Feature, bool) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), true
		}
	}
	return 0, false
}

// Vector holds one value in [0,1] per feature, indexed by Feature.
// Tempo is normalized (0 = slowest in catalog, 1 = fastest).
type Vector [NumFeatures]float64

// NeutralVector returns a vector with every feature at the midpoint.
func NeutralVector() Vector {
	var v Vector
	for i := range v {
		v[i] = Neutral
	}
	return v
}

// Uniform returns a vector with every feature set to x (clamped).
func Uniform(x float64) Vector {
	var v Vector
	for i := range v {
		v[i] = Clamp01(x)
	}
	return v
}

// Get returns the value for a feature.
func (v Vector) Get(f Feature) float64 {
	return v[f]
}

// Map returns the vector as a name -> value mapping with all six keys.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}

// MarshalJSON encodes the vector as an object keyed by feature name.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON decodes an object into a validated vector.
// Missing keys become Neutral and values are clamped; non-object JSON is rejected.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	validated, err := Validate(raw)
	if err != nil {
		return err
	}
	*v = validated
	return nil
}

// Clamp01 clamps x into [0,1].
func Clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Validate coerces an arbitrary attribute mapping into a complete, bounded Vector.
//
// Any map with string keys is accepted. Keys outside the six features are ignored,
// missing or non-numeric values become Neutral, and every value is clamped to [0,1].
// Anything that is not a mapping returns ErrInvalidInput.
func Validate(input any) (Vector, error) {
	return validateNamed(input, "vector")
}

func validateNamed(input any, name string) (Vector, error) {
	switch x := input.(type) {
	case Vector:
		return clampVector(x), nil
	case *Vector:
		if x == nil {
			return Vector{}, fmt.Errorf("%w: %s must be a mapping, got nil", ErrInvalidInput, name)
		}
		return clampVector(*x), nil
	case map[string]float64:
		v := NeutralVector()
		for i, key := range featureNames {
			if val, ok := x[key]; ok {
				v[i] = sanitize(val)
			}
		}
		return v, nil
	}

	rv := reflect.ValueOf(input)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return Vector{}, fmt.Errorf("%w: %s must be a mapping, got %T", ErrInvalidInput, name, input)
	}

	v := NeutralVector()
	for i, key := range featureNames {
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			continue
		}
		if f, ok := toFloat(val.Interface()); ok {
			v[i] = sanitize(f)
		}
	}
	return v, nil
}

// sanitize clamps a value, mapping NaN to Neutral.
func sanitize(x float64) float64 {
	if math.IsNaN(x) {
		return Neutral
	}
	return Clamp01(x)
}

func clampVector(v Vector) Vector {
	for i := range v {
		v[i] = sanitize(v[i])
	}
	return v
}

// toFloat converts common numeric representations to float64.
func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
