// Package scoring turns a free-form description of how someone feels, plus a goal,
// into start and end mood vectors.
package scoring

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/justestif/moodarc/internal/mood"
)

// Mode is the kind of transition the listener wants.
type Mode string

const (
	ModeUplift      Mode = "uplift"
	ModeFocus       Mode = "focus"
	ModeCalm        Mode = "calm"
	ModeGym         Mode = "gym"
	ModeSleep       Mode = "sleep"
	ModeRageRelease Mode = "rage_release"
)

// DefaultMode is used when no mode is given.
const DefaultMode = ModeUplift

// Modes lists every supported mode.
var Modes = []Mode{ModeUplift, ModeFocus, ModeCalm, ModeGym, ModeSleep, ModeRageRelease}

// ParseMode validates a mode name. An empty name yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultMode, nil
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	return slices.Contains(Modes, m)
}

// OrDefault returns m, or DefaultMode when m is not valid.
func (m Mode) OrDefault() Mode {
	if m.Valid() {
		return m
	}
	return DefaultMode
}

// GoalLabel is the end label used when the caller gives no goal.
func (m Mode) GoalLabel() string {
	switch m.OrDefault() {
	case ModeFocus:
		return "focused and productive"
	case ModeCalm:
		return "calm and steady"
	case ModeGym:
		return "powerful and motivated"
	case ModeSleep:
		return "sleepy and relaxed"
	case ModeRageRelease:
		return "released and stable"
	default:
		return "happier and energized"
	}
}

// Intent describes the mode's target for the language model prompt.
func (m Mode) Intent() string {
	switch m.OrDefault() {
	case ModeFocus:
		return "moderate energy, moderate valence, lower danceability, higher instrumentalness"
	case ModeCalm:
		return "lower energy, medium valence, slower tempo"
	case ModeGym:
		return "high energy, faster tempo, higher danceability"
	case ModeSleep:
		return "very low energy, slow tempo, high acousticness"
	case ModeRageRelease:
		return "start may be high energy/low valence; end becomes medium energy + higher valence"
	default:
		return "end should be higher valence + higher energy"
	}
}

// Preset is the mode's fixed end vector used by local scoring.
func (m Mode) Preset() mood.Vector {
	switch m.OrDefault() {
	case ModeFocus:
		return mood.Vector{0.58, 0.55, 0.34, 0.56, 0.36, 0.72}
	case ModeCalm:
		return mood.Vector{0.62, 0.30, 0.36, 0.28, 0.56, 0.55}
	case ModeGym:
		return mood.Vector{0.76, 0.92, 0.84, 0.88, 0.14, 0.12}
	case ModeSleep:
		return mood.Vector{0.48, 0.12, 0.14, 0.10, 0.74, 0.70}
	case ModeRageRelease:
		return mood.Vector{0.66, 0.58, 0.46, 0.54, 0.30, 0.34}
	default:
		return mood.Vector{0.82, 0.78, 0.70, 0.74, 0.24, 0.20}
	}
}

// Plan is a scored start and end mood with display labels.
type Plan struct {
	Start      mood.Vector
	End        mood.Vector
	StartLabel string
	EndLabel   string
	SafetyNote string

	// Source is "openai" or "fallback".
	Source string
}

// Scorer produces a Plan from the listener's own words.
type Scorer interface {
	Score(ctx context.Context, text, goal string, mode Mode) (Plan, error)
}
