package scaffold

import "strings"

// Config parameterizes a Controller. The zero value is not valid; build one
// and call Validate (NewController does this for you).
type Config struct {
	ModelA string
	ModelB string

	MaxStateSize  int
	MaxIterations int

	TempAStart       float64
	TempAEnd         float64
	TempAAnnealSteps int
	TempB            float64

	TopPA float64
	TopPB float64
	TopKA *int
	TopKB *int

	ReasoningEffortA string
	ReasoningEffortB string

	MaxToolIterations int

	// StarterPrompt is the system prompt for the initial (model A) answer.
	StarterPrompt string
	// ReviewerPrompt is the system prompt template for every review step; it
	// must contain both "{notes}" and "{review_input}" placeholders.
	ReviewerPrompt string
}

// DefaultConfig returns a Config with the scaffolding loop's reference
// defaults: a 10-note memory, a cap of 6 model calls per query (the starter
// call included), linear annealing from 1.0 to 0.2 over 10 model-A steps, and
// up to 3 tool-loop iterations per model call.
func DefaultConfig() Config {
	return Config{
		MaxStateSize:      10,
		MaxIterations:     6,
		TempAStart:        1.0,
		TempAEnd:          0.2,
		TempAAnnealSteps:  10,
		TempB:             0.7,
		TopPA:             0.95,
		TopPB:             0.95,
		MaxToolIterations: 3,
		StarterPrompt:     DefaultStarterPrompt,
		ReviewerPrompt:    DefaultReviewerPrompt,
	}
}

// Validate checks every invariant the scaffolding algorithm depends on:
// positive state/iteration bounds, a sane annealing range, top_p in (0,1],
// and a reviewer prompt that can actually be formatted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelA) == "" {
		return configErrorf("model_a is required")
	}
	if strings.TrimSpace(c.ModelB) == "" {
		return configErrorf("model_b is required")
	}
	if c.MaxStateSize <= 0 {
		return configErrorf("max_state_size must be > 0, got %d", c.MaxStateSize)
	}
	if c.MaxIterations <= 0 {
		return configErrorf("max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.TempAEnd > c.TempAStart {
		return configErrorf("temp_a_end (%v) must be <= temp_a_start (%v)", c.TempAEnd, c.TempAStart)
	}
	if c.TopPA <= 0 || c.TopPA > 1 {
		return configErrorf("top_p_a must be in (0,1], got %v", c.TopPA)
	}
	if c.TopPB <= 0 || c.TopPB > 1 {
		return configErrorf("top_p_b must be in (0,1], got %v", c.TopPB)
	}
	if c.MaxToolIterations < 0 {
		return configErrorf("max_tool_iterations must be >= 0, got %d", c.MaxToolIterations)
	}
	if !strings.Contains(c.ReviewerPrompt, "{notes}") || !strings.Contains(c.ReviewerPrompt, "{review_input}") {
		return configErrorf("reviewer_prompt must contain {notes} and {review_input} placeholders")
	}
	return nil
}

// annealTempA implements the linear decay from TempAStart to TempAEnd over
// TempAAnnealSteps starter-model calls, holding at TempAEnd thereafter.
func (c Config) annealTempA(step int) float64 {
	steps := c.TempAAnnealSteps
	if steps <= 0 {
		steps = 10
	}
	t := step
	if t > steps {
		t = steps
	}
	frac := 1.0 - float64(t)/float64(steps)
	return c.TempAEnd + (c.TempAStart-c.TempAEnd)*frac
}
