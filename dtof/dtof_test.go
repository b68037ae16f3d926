package dtof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/pdtime"
)

func TestGenerateBinsFullPeriodAndNormalisesRange(t *testing.T) {
	a, err := New(4, 4, 3, 11, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.RangeMin)
	assert.EqualValues(t, 12, a.RangeMax)
	assert.Equal(t, 4, a.Size())

	ts := &pdtime.ChannelTimestamps{
		Micro: []pdtime.MicroTime{8, 4, 4, 16, 12, 20, 20, 20, 32, 8, 12, 20, 24, 24, 16, 24},
		Macro: []pdtime.MacroTime{1, 4, 5, 6, 9, 11, 14, 15, 18, 21, 22, 25, 28, 33, 35, 38},
	}
	ts.SetSpan(0, 40)

	require.NoError(t, a.Generate(ts, 40))
	assert.True(t, a.PeriodComplete())
	assert.Equal(t, []uint32{0, 2, 2, 2}, a.Counts())
}

func TestGenerateSplitsAtPeriodBoundaryAndCarriesLeftover(t *testing.T) {
	a, err := New(4, 4, 0, 16, 0)
	require.NoError(t, err)

	// This batch's span (30) already crosses the first period's boundary
	// (20), so the split happens and the period completes within this
	// one call; the timestamps at and past the boundary are carried as
	// leftover.
	first := &pdtime.ChannelTimestamps{
		Macro: []pdtime.MacroTime{10, 20, 30},
		Micro: []pdtime.MicroTime{0, 4, 8},
	}
	first.SetSpan(0, 30)
	require.NoError(t, a.Generate(first, 20))
	assert.True(t, a.PeriodComplete())
	assert.Equal(t, uint64(1), sumOf(a.Counts()))

	second := &pdtime.ChannelTimestamps{
		Macro: []pdtime.MacroTime{25, 40},
		Micro: []pdtime.MicroTime{0, 4},
	}
	second.SetSpan(0, 40)
	require.NoError(t, a.Generate(second, 20))
	assert.True(t, a.PeriodComplete())

	// The leftover from the first period (counts at microtimes 4 and 8)
	// carries forward and is summed with this batch's two counts.
	assert.Equal(t, uint64(4), sumOf(a.Counts()))
}

func sumOf(c []uint32) uint64 {
	var n uint64
	for _, v := range c {
		n += uint64(v)
	}
	return n
}

func TestNewRejectsBinWidthSmallerThanResolution(t *testing.T) {
	_, err := New(2, 4, 0, 10, 0)
	assert.Error(t, err)
}

func TestNewRejectsNonDivisibleBinWidth(t *testing.T) {
	_, err := New(6, 4, 0, 10, 0)
	assert.Error(t, err)
}
