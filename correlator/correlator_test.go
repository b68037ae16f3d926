package correlator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

// Mirrors the "Correlator child offset" scenario: b0=1000ps, p=8, L=3, r=2.
func TestNewLaysOutChildOffsets(t *testing.T) {
	c, err := New(1000, 8, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 16, len(c.result.TauK))
	assert.Equal(t, 0, c.startIdx)
	assert.Equal(t, 8, c.length)

	assert.Equal(t, 8, c.child.startIdx)
	assert.Equal(t, 4, c.child.length)
	assert.EqualValues(t, 2000, c.child.binSize)

	assert.Equal(t, 12, c.child.child.startIdx)
	assert.Equal(t, 4, c.child.child.length)
	assert.EqualValues(t, 4000, c.child.child.binSize)
}

func TestUpdateG2RejectsWrongBinWidth(t *testing.T) {
	c, err := New(1000, 8, 1, 1)
	require.NoError(t, err)

	h := histogram.New(500)
	require.NoError(t, h.BinMacroTimes(nil, 0, 8))
	_, err = c.UpdateG2(h)
	assert.Error(t, err)
}

func TestUpdateG2RejectsTooFewBins(t *testing.T) {
	c, err := New(1000, 8, 1, 1)
	require.NoError(t, err)

	h := histogram.New(1000)
	require.NoError(t, h.BinMacroTimes(nil, 0, 4))
	_, err = c.UpdateG2(h)
	assert.Error(t, err)
}

func TestUpdateG2UniformCountsYieldUnityCorrelation(t *testing.T) {
	c, err := New(1000, 8, 3, 2)
	require.NoError(t, err)

	h := histogram.New(1000)
	h.SetSpan(0, 32)
	for i := range h.Counts {
		h.Counts[i] = 4
	}

	result, err := c.UpdateG2(h)
	require.NoError(t, err)
	require.Len(t, result.G2, 16)
	for i, g := range result.G2 {
		assert.InDelta(t, 1.0, g, 1e-9, "index %d", i)
	}
	assert.EqualValues(t, 0, result.TauK[0])
	assert.EqualValues(t, 1000, result.TauK[1])
}

func TestUpdateG2ZeroMarginalYieldsUnity(t *testing.T) {
	c, err := New(1000, 4, 1, 1)
	require.NoError(t, err)

	h := histogram.New(1000)
	h.SetSpan(0, 4)
	// all zero counts: every marginal sum is zero.
	result, err := c.UpdateG2(h)
	require.NoError(t, err)
	for _, g := range result.G2 {
		assert.Equal(t, 1.0, g)
	}
}
