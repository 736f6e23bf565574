package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/justestif/moodarc/internal/metrics"
	"github.com/justestif/moodarc/internal/mood"
)

// Fallback reasons.
const (
	ReasonMissingKey  = "missing_openai_key"
	ReasonUnparseable = "unparseable_openai_output"
	ReasonOffline     = "offline"
	reasonErrorPrefix = "openai_error:"
)

const maxLabelLen = 60

var (
	positiveWords  = []string{"happy", "hopeful", "good", "great", "excited", "optimistic", "confident"}
	negativeWords  = []string{"sad", "down", "bad", "depressed", "angry", "upset", "frustrated", "stressed", "anxious"}
	tiredWords     = []string{"tired", "sleepy", "exhausted", "burnt out", "drained"}
	energeticWords = []string{"energized", "hyped", "active", "pumped", "motivated"}
	calmWords      = []string{"calm", "steady", "peaceful", "relaxed"}
	focusWords     = []string{"focus", "study", "work", "concentrate", "productive"}
	partyWords     = []string{"party", "dance", "club", "celebrate"}
)

// Heuristic scores moods from keyword counts without any network calls.
// It never fails.
type Heuristic struct {
	// Reason is reported in the safety note. Defaults to ReasonOffline.
	Reason string
}

// Score implements Scorer.
func (h Heuristic) Score(_ context.Context, text, goal string, mode Mode) (Plan, error) {
	reason := h.Reason
	if reason == "" {
		reason = ReasonOffline
	}
	return FallbackPlan(text, goal, mode, reason), nil
}

// FallbackPlan builds a plan locally: the start vector from keywords in text, the end
// vector from the mode preset.
func FallbackPlan(text, goal string, mode Mode, reason string) Plan {
	mode = mode.OrDefault()
	metrics.RecordScore("fallback", metricReason(reason))

	startLabel := truncate(strings.TrimSpace(text), maxLabelLen)
	if startLabel == "" {
		startLabel = "current mood"
	}
	endLabel := truncate(strings.TrimSpace(goal), maxLabelLen)
	if endLabel == "" {
		endLabel = mode.GoalLabel()
	}

	return Plan{
		Start:      StartFromText(text),
		End:        mode.Preset(),
		StartLabel: startLabel,
		EndLabel:   endLabel,
		SafetyNote: fmt.Sprintf("Local fallback scoring used (%s).", reason),
		Source:     "fallback",
	}
}

// StartFromText estimates the current mood from keyword counts.
func StartFromText(text string) mood.Vector {
	text = strings.ToLower(text)

	positive := countMatches(text, positiveWords)
	negative := countMatches(text, negativeWords)
	tired := countMatches(text, tiredWords)
	energetic := countMatches(text, energeticWords)
	calm := countMatches(text, calmWords)
	focus := countMatches(text, focusWords)
	party := countMatches(text, partyWords)

	return mood.Vector{
		mood.Valence:          mood.Clamp01(0.50 + 0.08*(positive-negative)),
		mood.Energy:           mood.Clamp01(0.52 + 0.08*(energetic-tired) + 0.04*(negative-calm)),
		mood.Danceability:     mood.Clamp01(0.50 + 0.05*(party+energetic-tired)),
		mood.Tempo:            mood.Clamp01(0.50 + 0.06*(energetic-tired)),
		mood.Acousticness:     mood.Clamp01(0.42 + 0.06*(calm+tired-energetic)),
		mood.Instrumentalness: mood.Clamp01(0.34 + 0.07*(focus+calm-party)),
	}
}

// countMatches counts how many of words occur in text as substrings.
func countMatches(text string, words []string) float64 {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return float64(n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// metricReason collapses free-form error reasons into a bounded label set.
func metricReason(reason string) string {
	if strings.HasPrefix(reason, reasonErrorPrefix) {
		return strings.TrimSuffix(reasonErrorPrefix, ":")
	}
	return reason
}
