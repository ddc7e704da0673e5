// Package scaffold implements the iterative two-model critique/rewrite
// engine: a starter model drafts an answer, then an alternating sequence of
// reviewer calls critiques and rewrites it against a shared notes memory
// until one reviewer accepts the draft or the iteration cap is reached.
package scaffold

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hyperthink/internal/llmprovider"
	"hyperthink/internal/notes"
	"hyperthink/internal/reviewer"
	"hyperthink/internal/toolkit"
	"hyperthink/internal/usage"
)

// reviewerSlot is one position in the B/A/B/A... reviewer alternation.
type reviewerSlot struct {
	model           string
	label           string // "A" or "B", for annealing and logging
	topP            float64
	topK            *int
	reasoningEffort string
}

// Controller runs the scaffolding loop against two Completer-backed models.
type Controller struct {
	cfg       Config
	completer map[string]llmprovider.Completer // keyed by Config.ModelA / Config.ModelB
	registry  toolkit.Registry
	notes     *notes.Notes
	usage     *usage.Accumulator
	usageMu   sync.Mutex // guards usage.Merge from Plan's concurrent subtasks

	iterationCount int
	aReviewCount   int
}

// NewController validates cfg and constructs a Controller. completerA and
// completerB may be the same Completer instance when both models share a
// provider; they are looked up by model string, not by which argument they
// arrived in.
func NewController(cfg Config, completerA, completerB llmprovider.Completer, reg toolkit.Registry) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = toolkit.NewRegistry()
	}
	return &Controller{
		cfg:       cfg,
		completer: map[string]llmprovider.Completer{cfg.ModelA: completerA, cfg.ModelB: completerB},
		registry:  reg,
		notes:     notes.New(cfg.MaxStateSize, nil),
		usage:     usage.New(),
	}, nil
}

// Notes exposes the shared critique memory, mainly for checkpointing.
func (c *Controller) Notes() *notes.Notes { return c.notes }

// Usage returns the running token/cost totals for the most recent Query.
func (c *Controller) Usage() usage.Stats { return c.usage.Stats() }

// Reset clears notes and iteration counters, as at the start of a fresh
// Query, without running one. Exposed separately so a caller can discard
// accumulated state between unrelated requests without a mismatched Query.
func (c *Controller) Reset() {
	c.notes.Clear()
	c.usage.Reset()
	c.iterationCount = 0
	c.aReviewCount = 0
}

// Query runs the full starter + reviewer-alternation scaffolding loop against
// userContent and returns the accepted (or last attempted, on iteration cap)
// answer. It resets notes, usage, and iteration counters at entry, so each
// call starts from a clean slate; callers wanting cross-query notes should
// drive AddBatch/Format on Notes() directly rather than calling Query twice.
func (c *Controller) Query(ctx context.Context, userContent string) (string, error) {
	c.Reset()

	current, err := c.runStarter(ctx, userContent)
	if err != nil {
		return "", fmt.Errorf("starter: %w", err)
	}
	// The starter call itself counts toward max_iterations: every Completer
	// call counts, including the starter.
	c.iterationCount++

	slots := []reviewerSlot{
		{model: c.cfg.ModelB, label: "B", topP: c.cfg.TopPB, topK: c.cfg.TopKB, reasoningEffort: c.cfg.ReasoningEffortB},
		{model: c.cfg.ModelA, label: "A", topP: c.cfg.TopPA, topK: c.cfg.TopKA, reasoningEffort: c.cfg.ReasoningEffortA},
	}

	for step := 0; c.iterationCount < c.cfg.MaxIterations; step++ {
		slot := slots[step%2]
		temp := c.cfg.TempB
		if slot.label == "A" {
			temp = c.cfg.annealTempA(c.aReviewCount)
			c.aReviewCount++
		}

		verdict, err := c.runReviewer(ctx, slot, temp, current)
		if err != nil {
			return "", fmt.Errorf("review step %d (%s): %w", step, slot.label, err)
		}
		c.iterationCount++

		if verdict.Accepted {
			return verdict.Output, nil
		}
		current = verdict.Output
		c.notes.AddBatch(verdict.AddedNotes)
	}

	return current, ErrIterationCapReached
}

func (c *Controller) runStarter(ctx context.Context, userContent string) (string, error) {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: c.cfg.StarterPrompt},
		{Role: llmprovider.RoleUser, Content: userContent},
	}
	comp, err := runToolLoop(ctx, c.completer[c.cfg.ModelA], c.registry, c.usage, toolLoopParams{
		Model:             c.cfg.ModelA,
		Messages:          messages,
		Temperature:       c.cfg.annealTempA(0),
		TopP:              c.cfg.TopPA,
		TopK:              c.cfg.TopKA,
		ReasoningEffort:   c.cfg.ReasoningEffortA,
		MaxToolIterations: c.cfg.MaxToolIterations,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(comp.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return comp.Content, nil
}

// runReviewer issues one reviewer call and parses its verdict. It retries
// once without a JSON response_format if the provider rejects the request
// with ErrProviderRejected (e.g. a provider without a JSON mode); the
// reviewer prompt's own formatting instructions then carry the shape.
func (c *Controller) runReviewer(ctx context.Context, slot reviewerSlot, temp float64, reviewInput string) (reviewer.Verdict, error) {
	prompt := formatReviewerPrompt(c.cfg.ReviewerPrompt, c.notes.Format(), reviewInput)
	messages := []llmprovider.Message{{Role: llmprovider.RoleSystem, Content: prompt}}

	completer := c.completer[slot.model]
	params := toolLoopParams{
		Model:             slot.model,
		Messages:          messages,
		Temperature:       temp,
		TopP:              slot.topP,
		TopK:              slot.topK,
		ReasoningEffort:   slot.reasoningEffort,
		ResponseFormat:    &llmprovider.ResponseFormat{JSONObject: true},
		MaxToolIterations: c.cfg.MaxToolIterations,
	}

	comp, err := runToolLoop(ctx, completer, c.registry, c.usage, params)
	if errors.Is(err, llmprovider.ErrProviderRejected) {
		params.ResponseFormat = nil
		comp, err = runToolLoop(ctx, completer, c.registry, c.usage, params)
	}
	if err != nil {
		return reviewer.Verdict{}, err
	}
	if strings.TrimSpace(comp.Content) == "" {
		return reviewer.Verdict{}, ErrEmptyCompletion
	}

	return reviewer.Parse(comp.Content)
}

func formatReviewerPrompt(template, notesText, reviewInput string) string {
	out := strings.ReplaceAll(template, "{notes}", notesText)
	out = strings.ReplaceAll(out, "{review_input}", reviewInput)
	return out
}
