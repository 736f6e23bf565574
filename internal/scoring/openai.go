package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"

	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/metrics"
	"github.com/justestif/moodarc/internal/mood"
)

var (
	// ErrLLMUnavailable is returned when the circuit breaker is rejecting calls.
	ErrLLMUnavailable = errors.New("language model unavailable")

	// ErrUnparseable is returned when the model reply is not a usable plan.
	ErrUnparseable = errors.New("unparseable model output")
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second
)

const systemPrompt = `You are a music recommendation scoring system. ` +
	`Given a user's text describing how they feel, infer a START mood vector. ` +
	`Given a GOAL and MODE, infer an END mood vector. ` +
	`Return only values in [0,1] for each field. ` +
	`The vectors will be used to select songs by audio features from a dataset.

Guidelines:
- valence: sadness(0)->happiness(1)
- energy: calm(0)->intense(1)
- danceability: low(0)->high(1)
- tempo: slow(0)->fast(1)
- acousticness: electronic(0)->acoustic(1)
- instrumentalness: vocals(0)->instrumental(1)

MODE intent:
%s
Reply with a JSON object: {"start": {<six features>}, "end": {<six features>}, ` +
	`"start_label": "short phrase like 'stressed, disappointed'", ` +
	`"end_label": "short phrase like 'motivated, confident'", "safety_note": null}`

// OpenAIConfig configures an OpenAIScorer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIScorer asks a chat-completion model for the plan and falls back to
// FallbackPlan on any failure. It never returns an error.
type OpenAIScorer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[Plan]
}

// NewOpenAIScorer creates a scorer. An empty or placeholder API key yields a
// scorer that always uses local fallback scoring.
func NewOpenAIScorer(cfg OpenAIConfig) *OpenAIScorer {
	s := &OpenAIScorer{
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}

	key := strings.TrimSpace(cfg.APIKey)
	if !LooksLikePlaceholder(key) {
		clientCfg := openai.DefaultConfig(key)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		s.client = openai.NewClientWithConfig(clientCfg)
	}

	log := logging.WithComponent("scoring")
	s.breaker = gobreaker.NewCircuitBreaker[Plan](gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return s
}

// Enabled reports whether the scorer will call the API at all.
func (s *OpenAIScorer) Enabled() bool {
	return s.client != nil
}

// LooksLikePlaceholder reports whether an API key is empty or an obvious template value.
func LooksLikePlaceholder(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" || strings.HasPrefix(k, "your_") {
		return true
	}
	switch k {
	case "change-me", "replace-me", "todo":
		return true
	}
	return false
}

// Score implements Scorer.
func (s *OpenAIScorer) Score(ctx context.Context, text, goal string, mode Mode) (Plan, error) {
	mode = mode.OrDefault()
	if s.client == nil {
		return FallbackPlan(text, goal, mode, ReasonMissingKey), nil
	}

	plan, err := s.breaker.Execute(func() (Plan, error) {
		return s.complete(ctx, text, goal, mode)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrLLMUnavailable, err)
	}
	if err != nil {
		reason := reasonErrorPrefix + err.Error()
		if errors.Is(err, ErrUnparseable) {
			reason = ReasonUnparseable
		}
		logging.Ctx(ctx).Warn().Err(err).Str("reason", reason).Msg("openai scoring failed, using local fallback")
		return FallbackPlan(text, goal, mode, reason), nil
	}

	metrics.RecordScore("openai", "")
	return plan, nil
}

type planReply struct {
	Start      map[string]any `json:"start"`
	End        map[string]any `json:"end"`
	StartLabel string         `json:"start_label"`
	EndLabel   string         `json:"end_label"`
	SafetyNote *string        `json:"safety_note"`
}

func (s *OpenAIScorer) complete(ctx context.Context, text, goal string, mode Mode) (Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var intents strings.Builder
	for _, m := range Modes {
		fmt.Fprintf(&intents, "- %s: %s\n", m, m.Intent())
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, intents.String())},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(
				"USER_TEXT:\n%s\n\nGOAL:\n%s\n\nMODE:\n%s\n\nReturn start/end vectors consistent with the user's text and the goal.",
				text, goal, mode)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Plan{}, err
	}
	if len(resp.Choices) == 0 {
		return Plan{}, fmt.Errorf("%w: no choices", ErrUnparseable)
	}

	return parsePlan(resp.Choices[0].Message.Content, text, goal, mode)
}

// parsePlan decodes a model reply. Vectors are repaired by mood.Validate; empty
// labels fall back to the local defaults.
func parsePlan(content, text, goal string, mode Mode) (Plan, error) {
	var reply planReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if reply.Start == nil || reply.End == nil {
		return Plan{}, fmt.Errorf("%w: missing start or end", ErrUnparseable)
	}

	start, err := mood.Validate(reply.Start)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	end, err := mood.Validate(reply.End)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	plan := Plan{
		Start:      start,
		End:        end,
		StartLabel: strings.TrimSpace(reply.StartLabel),
		EndLabel:   strings.TrimSpace(reply.EndLabel),
		Source:     "openai",
	}
	if reply.SafetyNote != nil {
		plan.SafetyNote = *reply.SafetyNote
	}
	if plan.StartLabel == "" {
		plan.StartLabel = truncate(strings.TrimSpace(text), maxLabelLen)
	}
	if plan.StartLabel == "" {
		plan.StartLabel = "current mood"
	}
	if plan.EndLabel == "" {
		plan.EndLabel = truncate(strings.TrimSpace(goal), maxLabelLen)
	}
	if plan.EndLabel == "" {
		plan.EndLabel = mode.GoalLabel()
	}
	return plan, nil
}
