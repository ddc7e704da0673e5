// Package reviewer parses and validates the structured critique a reviewer
// model returns in response to the scaffolding controller's review prompt.
package reviewer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrVerdictParse wraps every failure mode of Parse: malformed JSON, a
// missing/empty output field, or a violated added_notes invariant. The raw
// content is preserved on the error for diagnostics.
type ErrVerdictParse struct {
	Raw    string
	Reason string
}

func (e *ErrVerdictParse) Error() string {
	return fmt.Sprintf("reviewer: verdict parse failed: %s (raw=%q)", e.Reason, e.Raw)
}

// Verdict is the reviewer's structured critique of the current answer.
type Verdict struct {
	Accepted   bool     `json:"review_result"`
	AddedNotes []string `json:"added_notes"`
	Output     string   `json:"output"`
}

// Parse strips an optional leading/trailing fenced code block from content,
// decodes the remainder as JSON, and validates the Reviewer Verdict
// invariants: output non-empty; accepted ⇒ added_notes empty; ¬accepted ⇒
// 2 ≤ len(added_notes) ≤ 8.
func Parse(content string) (Verdict, error) {
	stripped := stripFence(content)

	var v Verdict
	if err := json.Unmarshal([]byte(stripped), &v); err != nil {
		return Verdict{}, &ErrVerdictParse{Raw: content, Reason: err.Error()}
	}

	if strings.TrimSpace(v.Output) == "" {
		return Verdict{}, &ErrVerdictParse{Raw: content, Reason: "output must be non-empty"}
	}
	if v.Accepted {
		if len(v.AddedNotes) != 0 {
			return Verdict{}, &ErrVerdictParse{Raw: content, Reason: "added_notes must be empty when review_result is true"}
		}
	} else {
		if n := len(v.AddedNotes); n < 2 || n > 8 {
			return Verdict{}, &ErrVerdictParse{Raw: content, Reason: fmt.Sprintf("added_notes must contain 2-8 items when review_result is false (got %d)", n)}
		}
		for _, note := range v.AddedNotes {
			if strings.TrimSpace(note) == "" {
				return Verdict{}, &ErrVerdictParse{Raw: content, Reason: "added_notes must not contain empty strings"}
			}
		}
	}

	return v, nil
}

// StripFence removes a single leading/trailing ``` fence (with an optional
// language tag on the opening line), if present, after trimming whitespace.
// Exported so other structured-output parsers (e.g. the planner's task list)
// can reuse the same fence-stripping behavior reviewer verdicts rely on.
func StripFence(content string) string { return stripFence(content) }

func stripFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	body := lines[1:]
	if len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "```" {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n")
}
