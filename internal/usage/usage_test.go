package usage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd_AccumulatesAcrossCalls(t *testing.T) {
	a := New()
	a.Add(10, 5, 0.01, nil)
	a.Add(3, 2, 0.002, nil)

	s := a.Stats()
	assert.Equal(t, 13, s.PromptTokens)
	assert.Equal(t, 7, s.CompletionTokens)
	assert.Equal(t, 20, s.TotalTokens)
	assert.InDelta(t, 0.012, s.CostUSD, 1e-9)
}

func TestAdd_SwallowsCostEstimationFailure(t *testing.T) {
	a := New()
	a.Add(10, 5, 0, errors.New("no pricing table for model"))

	s := a.Stats()
	assert.Equal(t, 10, s.PromptTokens)
	assert.Equal(t, 5, s.CompletionTokens)
	assert.Equal(t, 0.0, s.CostUSD)
}

func TestReset_ZeroesTotals(t *testing.T) {
	a := New()
	a.Add(10, 5, 1.0, nil)
	a.Reset()

	assert.Equal(t, Stats{}, a.Stats())
}

func TestTotalTokens_AlwaysSumOfParts(t *testing.T) {
	a := New()
	a.Add(7, 0, 0, nil)
	a.Add(0, 4, 0, nil)
	assert.Equal(t, 11, a.Stats().TotalTokens)
}
