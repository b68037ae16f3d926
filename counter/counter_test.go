package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

func channelTimestamps(macro []pdtime.MacroTime, until pdtime.MacroTime) *pdtime.ChannelTimestamps {
	ts := &pdtime.ChannelTimestamps{Macro: macro, Micro: make([]pdtime.MicroTime, len(macro))}
	ts.SetSpan(0, until)
	return ts
}

// Mirrors the "Integration period crossing" scenario: three batches
// spanning windows [0,70), [0,140), [0,210) with period 105 (1.5x);
// the second batch carries 2 timestamps past the first boundary.
func TestIntegrationPeriodCrossing(t *testing.T) {
	c := NewTimestampCounter(0)

	ts1 := channelTimestamps([]pdtime.MacroTime{0, 10, 20, 30, 40, 50, 60}, 70)
	require.NoError(t, c.CountTimestamps(ts1, 105))
	assert.False(t, c.PeriodComplete())

	ts2 := channelTimestamps([]pdtime.MacroTime{
		75, 80, 85, 90, 95, 98, 100, 101, 102, 103, 104, 105, 120, 140,
	}, 140)
	require.NoError(t, c.CountTimestamps(ts2, 105))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(len(ts1.Macro)+len(ts2.Macro)-2), c.Count())

	ts3 := make([]pdtime.MacroTime, 21)
	for i := range ts3 {
		ts3[i] = pdtime.MacroTime(105 + i*5)
	}
	require.NoError(t, c.CountTimestamps(channelTimestamps(ts3, 210), 105))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(len(ts3)+2), c.Count())
}

func TestTimestampCounterRejectsTooShortPeriod(t *testing.T) {
	c := NewTimestampCounter(0)
	ts := channelTimestamps([]pdtime.MacroTime{0, 100, 500, 999}, 1000)
	assert.Error(t, c.CountTimestamps(ts, 10))
}

func TestHistogramCounterRejectsIndivisiblePeriod(t *testing.T) {
	c := NewHistogramCounter(0)
	h := histogram.New(10)
	require.NoError(t, h.BinMacroTimes(nil, 0, 5))
	err := c.CountHistogram(h, 23)
	assert.Error(t, err)
}

func TestHistogramCounterSumsAndCarriesLeftover(t *testing.T) {
	c := NewHistogramCounter(0)
	h := histogram.New(10)
	require.NoError(t, h.BinMacroTimes([]pdtime.MacroTime{5, 15, 25}, 0, 3))

	require.NoError(t, c.CountHistogram(h, 20))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(2), c.Count())

	// The count in bin 2 was carried over and opens the next period.
	h2 := histogram.New(10)
	require.NoError(t, h2.BinMacroTimes([]pdtime.MacroTime{35}, 3, 4))
	require.NoError(t, c.CountHistogram(h2, 20))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(2), c.Count())
}

func TestROICounterCountsWithinBoundsInclusive(t *testing.T) {
	c := NewROICounter(0)
	ts := &pdtime.ChannelTimestamps{
		Macro: []pdtime.MacroTime{1, 2, 3, 4},
		Micro: []pdtime.MicroTime{5, 10, 15, 20},
	}
	ts.SetSpan(0, 10)
	require.NoError(t, c.CountROI(ts, 10, 10, 15))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(2), c.Count())
}

// Mirrors the source's documented edge case: once a batch splits across a
// period boundary, the ROI used for the leftover (next-period) timestamps
// is the one supplied to that splitting call, and a subsequent call that
// starts the next period cannot override it even if it passes a new ROI.
func TestROICounterDefersNewROIUntilNextPeriod(t *testing.T) {
	c := NewROICounter(0)

	// Period 1, no crossing yet: establishes roi=[0,100].
	first := &pdtime.ChannelTimestamps{Macro: []pdtime.MacroTime{3}, Micro: []pdtime.MicroTime{5}}
	first.SetSpan(0, 5)
	require.NoError(t, c.CountROI(first, 10, 0, 100))
	assert.False(t, c.PeriodComplete())
	assert.Equal(t, uint64(1), c.Count())

	// Period 1 still active but this batch crosses its boundary (10); the
	// leftover timestamp (macro 12) is evaluated against the roi supplied
	// to *this* call, [70,80], not [0,100].
	crossing := &pdtime.ChannelTimestamps{
		Macro: []pdtime.MacroTime{8, 12},
		Micro: []pdtime.MicroTime{5, 75},
	}
	crossing.SetSpan(0, 12)
	require.NoError(t, c.CountROI(crossing, 10, 70, 80))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(2), c.Count())

	// Period 2 starts here; the roi passed in this call, [999,999], must
	// be ignored in favor of [70,80] captured by the crossing call above.
	next := &pdtime.ChannelTimestamps{Macro: []pdtime.MacroTime{15}, Micro: []pdtime.MicroTime{75}}
	next.SetSpan(0, 20)
	require.NoError(t, c.CountROI(next, 10, 999, 999))
	assert.True(t, c.PeriodComplete())
	assert.Equal(t, uint64(2), c.Count())
}
