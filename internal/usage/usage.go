// Package usage accumulates per-query token counts and estimated cost across
// every Completer call the scaffolding controller makes, including tool-loop
// sub-calls.
package usage

// Stats is the running total for a single query. Prompt and completion
// tokens are monotonically non-decreasing within a query and reset at query
// start; TotalTokens is always PromptTokens + CompletionTokens.
type Stats struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Accumulator tracks Stats for the query currently in flight.
type Accumulator struct {
	stats Stats
}

// New returns a fresh Accumulator with all totals at zero.
func New() *Accumulator { return &Accumulator{} }

// Reset zeroes the running totals; called at the start of every query.
func (a *Accumulator) Reset() { a.stats = Stats{} }

// Add folds in the usage and cost of a single Completer call. Missing token
// fields are treated as zero rather than failing the whole call; a failed
// cost estimate (signalled by passing costErr != nil) leaves CostUSD
// unchanged rather than aborting accumulation.
func (a *Accumulator) Add(promptTokens, completionTokens int, costUSD float64, costErr error) {
	a.stats.PromptTokens += promptTokens
	a.stats.CompletionTokens += completionTokens
	a.stats.TotalTokens = a.stats.PromptTokens + a.stats.CompletionTokens
	if costErr == nil {
		a.stats.CostUSD += costUSD
	}
}

// Stats returns a copy of the current running totals.
func (a *Accumulator) Stats() Stats { return a.stats }

// Merge folds another Accumulator's totals into a, summing tokens and cost.
// Used to roll up independent subtask accumulators (e.g. one per planner
// subtask) into the controller-level total once all subtasks have finished.
func (a *Accumulator) Merge(other Stats) {
	a.stats.PromptTokens += other.PromptTokens
	a.stats.CompletionTokens += other.CompletionTokens
	a.stats.TotalTokens = a.stats.PromptTokens + a.stats.CompletionTokens
	a.stats.CostUSD += other.CostUSD
}
