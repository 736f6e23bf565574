package mood

import (
	"errors"
	"math"
	"testing"
)

func TestMakeArc_Example(t *testing.T) {
	arc, err := MakeArc(Uniform(0.1), map[string]float64{
		"valence":          0.9,
		"energy":           0.9,
		"danceability":     0.9,
		"tempo":            0.9,
		"acousticness":     0.9,
		"instrumentalness": 0.9,
	}, 3)
	if err != nil {
		t.Fatalf("MakeArc() error = %v", err)
	}

	if len(arc) != 3 {
		t.Fatalf("len(arc) = %d, want 3", len(arc))
	}

	wants := []float64{0.1, 0.5, 0.9}
	for i, want := range wants {
		for _, f := range AllFeatures {
			if got := arc[i].Get(f); math.Abs(got-want) > 1e-12 {
				t.Errorf("arc[%d].%s = %v, want %v", i, f, got, want)
			}
		}
	}
}

func TestMakeArc_StageClamping(t *testing.T) {
	tests := []struct {
		stages int
		want   int
	}{
		{-3, 2},
		{0, 2},
		{1, 2},
		{2, 2},
		{5, 5},
		{10, 10},
		{11, 10},
		{99, 10},
	}

	for _, tt := range tests {
		arc, err := MakeArc(map[string]float64{}, map[string]float64{}, tt.stages)
		if err != nil {
			t.Fatalf("MakeArc(stages=%d) error = %v", tt.stages, err)
		}
		if len(arc) != tt.want {
			t.Errorf("MakeArc(stages=%d) len = %d, want %d", tt.stages, len(arc), tt.want)
		}
	}
}

func TestMakeArc_EndpointsExact(t *testing.T) {
	start := map[string]float64{
		"valence":          0.13,
		"energy":           0.77,
		"danceability":     0.31,
		"tempo":            0.07,
		"acousticness":     0.91,
		"instrumentalness": 0.29,
	}
	end := map[string]any{
		"valence": 0.83,
		"energy":  0.1,
		"tempo":   1.7,
	}

	wantStart, _ := Validate(start)
	wantEnd, _ := Validate(end)

	for stages := MinStages; stages <= MaxStages; stages++ {
		arc, err := MakeArc(start, end, stages)
		if err != nil {
			t.Fatalf("MakeArc() error = %v", err)
		}
		if arc[0] != wantStart {
			t.Errorf("stages=%d: arc[0] = %v, want %v", stages, arc[0], wantStart)
		}
		if arc[len(arc)-1] != wantEnd {
			t.Errorf("stages=%d: arc[last] = %v, want %v", stages, arc[len(arc)-1], wantEnd)
		}
	}
}

func TestMakeArc_IntermediatesOnLine(t *testing.T) {
	start := Vector{0, 0.2, 0.4, 0.6, 0.8, 1}
	end := Vector{1, 0.8, 0.6, 0.4, 0.2, 0}

	arc, err := MakeArc(start, end, 7)
	if err != nil {
		t.Fatalf("MakeArc() error = %v", err)
	}

	for i, v := range arc {
		tt := float64(i) / 6
		for _, f := range AllFeatures {
			want := start[f] + (end[f]-start[f])*tt
			if got := v.Get(f); math.Abs(got-want) > 1e-12 {
				t.Errorf("arc[%d].%s = %v, want %v", i, f, got, want)
			}
			if v.Get(f) < 0 || v.Get(f) > 1 {
				t.Errorf("arc[%d].%s = %v out of range", i, f, v.Get(f))
			}
		}
	}
}

func TestMakeArc_InvalidInput(t *testing.T) {
	if _, err := MakeArc(nil, map[string]float64{}, 5); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("MakeArc(nil start) error = %v, want ErrInvalidInput", err)
	}
	if _, err := MakeArc(map[string]float64{}, 42, 5); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("MakeArc(int end) error = %v, want ErrInvalidInput", err)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want string
	}{
		{"high energy high valence", Vector{Valence: 0.7, Energy: 0.8, Acousticness: 0.2}, "Upbeat Party"},
		{"high energy low valence", Vector{Valence: 0.3, Energy: 0.8, Acousticness: 0.2}, "Intense & Dark"},
		{"low energy high valence", Vector{Valence: 0.7, Energy: 0.4, Acousticness: 0.3}, "Chill & Happy"},
		{"low energy low valence", Vector{Valence: 0.3, Energy: 0.3, Acousticness: 0.4}, "Reflective & Melancholy"},
		{"acoustic modifier", Vector{Valence: 0.7, Energy: 0.4, Acousticness: 0.8}, "Chill & Happy (Acoustic)"},
		{"boundary energy exactly 0.6 is low", Vector{Valence: 0.7, Energy: 0.6}, "Chill & Happy"},
		{"boundary valence exactly 0.5 is low", Vector{Valence: 0.5, Energy: 0.8}, "Intense & Dark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.v); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}
