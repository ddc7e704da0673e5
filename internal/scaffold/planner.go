package scaffold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"hyperthink/internal/llmprovider"
	"hyperthink/internal/notes"
	"hyperthink/internal/reviewer"
	"hyperthink/internal/usage"
)

// planOutput is the planner's structured decomposition of a request into
// independent subtasks.
type planOutput struct {
	Tasks []string `json:"tasks"`
}

func parsePlan(content string) (planOutput, error) {
	stripped := reviewer.StripFence(content)

	var p planOutput
	if err := json.Unmarshal([]byte(stripped), &p); err != nil {
		return planOutput{}, fmt.Errorf("scaffold: parse plan: %w", err)
	}
	if len(p.Tasks) == 0 {
		return planOutput{}, fmt.Errorf("scaffold: parse plan: tasks must be non-empty")
	}
	if len(p.Tasks) > 6 {
		return planOutput{}, fmt.Errorf("scaffold: parse plan: at most 6 tasks, got %d", len(p.Tasks))
	}
	for i, t := range p.Tasks {
		if strings.TrimSpace(t) == "" {
			return planOutput{}, fmt.Errorf("scaffold: parse plan: task %d is empty", i)
		}
	}
	return p, nil
}

type subtaskResult struct {
	Task   string
	Answer string
}

// Plan decomposes userContent into independent subtasks, runs the full
// scaffolding loop on each concurrently against its own notes memory, and
// synthesizes the subtask answers into a single final answer. Each subtask's
// usage is rolled into the Controller's own Usage() total; its notes memory
// is not — subtasks never see each other's critique notes, by design.
func (c *Controller) Plan(ctx context.Context, userContent string) (string, error) {
	c.Reset()

	plan, err := c.runPlanner(ctx, userContent)
	if err != nil {
		return "", fmt.Errorf("planner: %w", err)
	}

	results := make([]subtaskResult, len(plan.Tasks))
	group, gctx := errgroup.WithContext(ctx)
	for i, task := range plan.Tasks {
		i, task := i, task
		group.Go(func() error {
			sub := c.newSubController()
			answer, err := sub.Query(gctx, task)
			if err != nil {
				return fmt.Errorf("subtask %d (%q): %w", i, task, err)
			}
			c.mergeSubUsage(sub)
			results[i] = subtaskResult{Task: task, Answer: answer}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	return c.synthesize(ctx, userContent, results)
}

func (c *Controller) runPlanner(ctx context.Context, userContent string) (planOutput, error) {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: DefaultPlannerPrompt},
		{Role: llmprovider.RoleUser, Content: userContent},
	}
	params := toolLoopParams{
		Model:             c.cfg.ModelA,
		Messages:          messages,
		Temperature:       c.cfg.annealTempA(0),
		TopP:              c.cfg.TopPA,
		TopK:              c.cfg.TopKA,
		ReasoningEffort:   c.cfg.ReasoningEffortA,
		ResponseFormat:    &llmprovider.ResponseFormat{JSONObject: true},
		MaxToolIterations: c.cfg.MaxToolIterations,
	}

	comp, err := runToolLoop(ctx, c.completer[c.cfg.ModelA], c.registry, c.usage, params)
	if errors.Is(err, llmprovider.ErrProviderRejected) {
		params.ResponseFormat = nil
		comp, err = runToolLoop(ctx, c.completer[c.cfg.ModelA], c.registry, c.usage, params)
	}
	if err != nil {
		return planOutput{}, err
	}

	return parsePlan(comp.Content)
}

// newSubController shares completers, registry, and config with c but starts
// from a fresh notes memory and usage accumulator, so concurrent subtasks
// never race on c's own state.
func (c *Controller) newSubController() *Controller {
	return &Controller{
		cfg:       c.cfg,
		completer: c.completer,
		registry:  c.registry,
		notes:     notes.New(c.cfg.MaxStateSize, nil),
		usage:     usage.New(),
	}
}

// mergeSubUsage folds a finished subtask Controller's usage totals into c.
// Called from concurrent errgroup goroutines, one per subtask; usageMu
// serializes the merges since Accumulator itself has no internal locking.
func (c *Controller) mergeSubUsage(sub *Controller) {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	c.usage.Merge(sub.usage.Stats())
}

func (c *Controller) synthesize(ctx context.Context, userContent string, results []subtaskResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request:\n%s\n\n", userContent)
	for _, r := range results {
		fmt.Fprintf(&b, "Subtask: %s\nAnswer: %s\n\n", r.Task, r.Answer)
	}

	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: DefaultSynthesizerPrompt},
		{Role: llmprovider.RoleUser, Content: b.String()},
	}
	comp, err := runToolLoop(ctx, c.completer[c.cfg.ModelA], c.registry, c.usage, toolLoopParams{
		Model:             c.cfg.ModelA,
		Messages:          messages,
		Temperature:       c.cfg.annealTempA(c.aReviewCount),
		TopP:              c.cfg.TopPA,
		TopK:              c.cfg.TopKA,
		ReasoningEffort:   c.cfg.ReasoningEffortA,
		MaxToolIterations: c.cfg.MaxToolIterations,
	})
	if err != nil {
		return "", fmt.Errorf("synthesizer: %w", err)
	}
	if strings.TrimSpace(comp.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return comp.Content, nil
}
