package reviewer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PlainJSON_Accepted(t *testing.T) {
	v, err := Parse(`{"review_result": true, "added_notes": [], "output": "42"}`)
	require.NoError(t, err)
	assert.True(t, v.Accepted)
	assert.Empty(t, v.AddedNotes)
	assert.Equal(t, "42", v.Output)
}

func TestParse_FencedJSON(t *testing.T) {
	content := "```json\n{\"review_result\": false, \"added_notes\": [\"a\", \"b\"], \"output\": \"draft\"}\n```"
	v, err := Parse(content)
	require.NoError(t, err)
	assert.False(t, v.Accepted)
	assert.Equal(t, []string{"a", "b"}, v.AddedNotes)
}

func TestParse_FencedWithoutLanguageTag(t *testing.T) {
	content := "```\n{\"review_result\": true, \"added_notes\": [], \"output\": \"ok\"}\n```"
	v, err := Parse(content)
	require.NoError(t, err)
	assert.True(t, v.Accepted)
}

func TestParse_RejectsAcceptedWithNotes(t *testing.T) {
	_, err := Parse(`{"review_result": true, "added_notes": ["x"], "output": "ok"}`)
	require.Error(t, err)
	var pe *ErrVerdictParse
	require.True(t, errors.As(err, &pe))
}

func TestParse_RejectsTooFewNotes(t *testing.T) {
	_, err := Parse(`{"review_result": false, "added_notes": ["x"], "output": "ok"}`)
	require.Error(t, err)
}

func TestParse_RejectsTooManyNotes(t *testing.T) {
	notes := `["1","2","3","4","5","6","7","8","9"]`
	_, err := Parse(`{"review_result": false, "added_notes": ` + notes + `, "output": "ok"}`)
	require.Error(t, err)
}

func TestParse_RejectsEmptyOutput(t *testing.T) {
	_, err := Parse(`{"review_result": true, "added_notes": [], "output": ""}`)
	require.Error(t, err)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	_, err := Parse(`not json at all`)
	require.Error(t, err)
}

func TestParse_AcceptsExactlyEightNotes(t *testing.T) {
	notes := `["1","2","3","4","5","6","7","8"]`
	v, err := Parse(`{"review_result": false, "added_notes": ` + notes + `, "output": "ok"}`)
	require.NoError(t, err)
	assert.Len(t, v.AddedNotes, 8)
}

func TestParse_RejectsEmptyStringNote(t *testing.T) {
	_, err := Parse(`{"review_result": false, "added_notes": ["", "valid"], "output": "ok"}`)
	require.Error(t, err)
	var pe *ErrVerdictParse
	require.True(t, errors.As(err, &pe))
}

func TestParse_RejectsBlankNote(t *testing.T) {
	_, err := Parse(`{"review_result": false, "added_notes": ["   ", "valid"], "output": "ok"}`)
	require.Error(t, err)
}
