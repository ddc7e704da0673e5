package scaffold

import (
	"encoding/json"
	"fmt"
	"io"

	"hyperthink/internal/notes"
)

// checkpointConfig is the subset of Config worth persisting in a checkpoint:
// enough to sanity-check a loaded checkpoint was produced by a compatible
// Controller, not to fully reconstruct one (prompts and tool wiring are the
// caller's responsibility to supply fresh).
type checkpointConfig struct {
	ModelA           string  `json:"model_a"`
	ModelB           string  `json:"model_b"`
	MaxStateSize     int     `json:"max_state_size"`
	MaxIterations    int     `json:"max_iterations"`
	TempAStart       float64 `json:"temp_a_start"`
	TempAEnd         float64 `json:"temp_a_end"`
	TempB            float64 `json:"temp_b"`
	TopPA            float64 `json:"top_p_a"`
	TopPB            float64 `json:"top_p_b"`
	ReasoningEffortA string  `json:"reasoning_effort_a"`
	ReasoningEffortB string  `json:"reasoning_effort_b"`
}

// Checkpoint is the serializable snapshot of a Controller's in-flight state.
type Checkpoint struct {
	Notes          notes.Snapshot   `json:"notes"`
	IterationCount int              `json:"iteration_count"`
	AReviewCount   int              `json:"a_review_count"`
	Config         checkpointConfig `json:"config"`
}

// SaveCheckpoint writes the Controller's current notes memory and iteration
// counters to w as JSON. It does not pause or lock the Controller; callers
// must not call Query concurrently with SaveCheckpoint.
func (c *Controller) SaveCheckpoint(w io.Writer) error {
	cp := Checkpoint{
		Notes:          c.notes.Snapshot(),
		IterationCount: c.iterationCount,
		AReviewCount:   c.aReviewCount,
		Config: checkpointConfig{
			ModelA:           c.cfg.ModelA,
			ModelB:           c.cfg.ModelB,
			MaxStateSize:     c.cfg.MaxStateSize,
			MaxIterations:    c.cfg.MaxIterations,
			TempAStart:       c.cfg.TempAStart,
			TempAEnd:         c.cfg.TempAEnd,
			TempB:            c.cfg.TempB,
			TopPA:            c.cfg.TopPA,
			TopPB:            c.cfg.TopPB,
			ReasoningEffortA: c.cfg.ReasoningEffortA,
			ReasoningEffortB: c.cfg.ReasoningEffortB,
		},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cp)
}

// LoadCheckpoint restores notes memory and iteration counters from r. The
// checkpoint's max_state_size must match the Controller's configured
// MaxStateSize; everything else in Checkpoint.Config is informational only and
// is not compared.
func (c *Controller) LoadCheckpoint(r io.Reader) error {
	var cp Checkpoint
	if err := json.NewDecoder(r).Decode(&cp); err != nil {
		return fmt.Errorf("scaffold: decode checkpoint: %w", err)
	}
	if cp.Notes.MaxSize != c.cfg.MaxStateSize {
		return fmt.Errorf("scaffold: checkpoint max_state_size %d does not match controller's %d", cp.Notes.MaxSize, c.cfg.MaxStateSize)
	}
	c.notes.Restore(cp.Notes)
	c.iterationCount = cp.IterationCount
	c.aReviewCount = cp.AReviewCount
	return nil
}
