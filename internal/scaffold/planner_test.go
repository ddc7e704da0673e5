package scaffold

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperthink/internal/toolkit"
)

func TestParsePlan_ValidJSON(t *testing.T) {
	p, err := parsePlan(`{"tasks": ["research X", "draft Y"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"research X", "draft Y"}, p.Tasks)
}

func TestParsePlan_StripsFencedCodeBlock(t *testing.T) {
	p, err := parsePlan("```json\n{\"tasks\": [\"a\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.Tasks)
}

func TestParsePlan_RejectsEmptyTasks(t *testing.T) {
	_, err := parsePlan(`{"tasks": []}`)
	require.Error(t, err)
}

func TestParsePlan_RejectsTooManyTasks(t *testing.T) {
	_, err := parsePlan(`{"tasks": ["a","b","c","d","e","f","g"]}`)
	require.Error(t, err)
}

func TestParsePlan_RejectsBlankTask(t *testing.T) {
	_, err := parsePlan(`{"tasks": ["a", "   "]}`)
	require.Error(t, err)
}

func TestPlan_DecomposesRunsSubtasksAndSynthesizes(t *testing.T) {
	completerA := &fakeCompleter{responses: []fakeResponse{
		textResponse(`{"tasks": ["sub one", "sub two"]}`), // planner call

		// sub one: starter + accepted-on-first-review (slot A never reached)
		textResponse("sub one draft"),
		// sub two: starter
		textResponse("sub two draft"),

		// synthesizer call (model A)
		textResponse("combined final answer"),
	}}
	completerB := &fakeCompleter{responses: []fakeResponse{
		textResponse(`{"review_result": true, "added_notes": [], "output": "sub one answer"}`),
		textResponse(`{"review_result": true, "added_notes": [], "output": "sub two answer"}`),
	}}

	cfg := testConfig()
	ctrl, err := NewController(cfg, completerA, completerB, toolkit.NewRegistry())
	require.NoError(t, err)

	out, err := ctrl.Plan(context.Background(), "do two things")
	require.NoError(t, err)
	assert.Equal(t, "combined final answer", out)
}

func TestPlan_SubtaskFailurePropagates(t *testing.T) {
	completerA := &fakeCompleter{responses: []fakeResponse{
		textResponse(`{"tasks": ["sub one"]}`),
		textResponse("   "), // empty starter completion for the subtask -> ErrEmptyCompletion
	}}
	completerB := &fakeCompleter{}

	ctrl, err := NewController(testConfig(), completerA, completerB, toolkit.NewRegistry())
	require.NoError(t, err)

	_, err = ctrl.Plan(context.Background(), "do one thing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "subtask"))
}

func TestPlan_MergesSubtaskUsageIntoControllerTotal(t *testing.T) {
	completerA := &fakeCompleter{responses: []fakeResponse{
		textResponse(`{"tasks": ["sub one", "sub two"]}`),
		textResponse("sub one draft"),
		textResponse("sub two draft"),
		textResponse("combined"),
	}}
	completerB := &fakeCompleter{responses: []fakeResponse{
		textResponse(`{"review_result": true, "added_notes": [], "output": "a1"}`),
		textResponse(`{"review_result": true, "added_notes": [], "output": "a2"}`),
	}}

	ctrl, err := NewController(testConfig(), completerA, completerB, toolkit.NewRegistry())
	require.NoError(t, err)

	_, err = ctrl.Plan(context.Background(), "do two things")
	require.NoError(t, err)

	stats := ctrl.Usage()
	assert.Greater(t, stats.PromptTokens, 0)
	assert.Greater(t, stats.TotalTokens, 0)
}
