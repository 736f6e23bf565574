package mood

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Vector
	}{
		{
			name:  "empty map fills every key with neutral",
			input: map[string]float64{},
			want:  NeutralVector(),
		},
		{
			name:  "nil map is still a mapping",
			input: map[string]float64(nil),
			want:  NeutralVector(),
		},
		{
			name: "partial map keeps provided values",
			input: map[string]float64{
				"valence": 0.2,
				"energy":  0.9,
			},
			want: Vector{0.2, 0.9, 0.5, 0.5, 0.5, 0.5},
		},
		{
			name: "out of range values are clamped",
			input: map[string]float64{
				"valence":          -1.5,
				"energy":           3,
				"danceability":     1,
				"tempo":            0,
				"acousticness":     0.25,
				"instrumentalness": 1.0001,
			},
			want: Vector{0, 1, 1, 0, 0.25, 1},
		},
		{
			name: "unknown keys are ignored",
			input: map[string]float64{
				"loudness": -7,
				"valence":  0.3,
			},
			want: Vector{0.3, 0.5, 0.5, 0.5, 0.5, 0.5},
		},
		{
			name: "generic map with mixed numeric types",
			input: map[string]any{
				"valence":          0.4,
				"energy":           1,
				"danceability":     "0.75",
				"tempo":            float32(0.5),
				"acousticness":     "not a number",
				"instrumentalness": true,
			},
			want: Vector{0.4, 1, 0.75, 0.5, 0.5, 1},
		},
		{
			name:  "NaN becomes neutral",
			input: map[string]float64{"valence": math.NaN()},
			want:  NeutralVector(),
		},
		{
			name:  "vector input is clamped",
			input: Vector{2, -1, 0.5, 0.5, 0.5, 0.5},
			want:  Vector{1, 0, 0.5, 0.5, 0.5, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_NotAMapping(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"untyped nil", nil},
		{"number", 0.5},
		{"string", "valence=0.5"},
		{"slice", []float64{0.1, 0.2}},
		{"int keyed map", map[int]float64{0: 0.5}},
		{"nil vector pointer", (*Vector)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestValidate_AlwaysComplete(t *testing.T) {
	inputs := []any{
		map[string]float64{},
		map[string]any{"tempo": 12},
		map[string]string{"energy": "0.1"},
	}

	for _, in := range inputs {
		v, err := Validate(in)
		if err != nil {
			t.Fatalf("Validate(%v) error = %v", in, err)
		}
		m := v.Map()
		if len(m) != NumFeatures {
			t.Errorf("Map() has %d keys, want %d", len(m), NumFeatures)
		}
		for key, val := range m {
			if val < 0 || val > 1 {
				t.Errorf("%s = %v, want value in [0,1]", key, val)
			}
		}
	}
}

func TestVector_JSON(t *testing.T) {
	var v Vector
	if err := json.Unmarshal([]byte(`{"valence": 0.9, "energy": 7}`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := Vector{0.9, 1, 0.5, 0.5, 0.5, 0.5}
	if v != want {
		t.Errorf("Unmarshal() = %v, want %v", v, want)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]float64
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("Unmarshal(map) error = %v", err)
	}
	if m["valence"] != 0.9 || m["instrumentalness"] != 0.5 {
		t.Errorf("Marshal() = %s", out)
	}

	if err := v.UnmarshalJSON([]byte(`[1,2,3]`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("UnmarshalJSON(array) error = %v, want ErrInvalidInput", err)
	}
}

func TestFeature_String(t *testing.T) {
	for _, f := range AllFeatures {
		parsed, ok := ParseFeature(f.String())
		if !ok || parsed != f {
			t.Errorf("ParseFeature(%q) = %v, %v", f.String(), parsed, ok)
		}
	}
	if _, ok := ParseFeature("loudness"); ok {
		t.Error("ParseFeature(loudness) should fail")
	}
}
