// Package counter accumulates photon/event counts over a configurable
// integration period that may span multiple update calls, the same way
// dtof accumulates microtime histograms: a period is complete exactly
// when an update's data crosses its end, and any count past the
// boundary carries forward as leftover for the next period.
package counter

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

// state holds the fields common to every counter variant.
type state struct {
	count          uint64
	leftoverCount  uint64
	periodStart    pdtime.MacroTime
	period         pdtime.MacroTime
	periodComplete bool
}

func newState(firstPeriodStart pdtime.MacroTime) state {
	return state{periodStart: firstPeriodStart, periodComplete: true}
}

// Count returns the accumulated count for the current integration period.
func (s *state) Count() uint64 { return s.count }

// PeriodComplete reports whether the current integration period has
// finished and Count() holds its final value.
func (s *state) PeriodComplete() bool { return s.periodComplete }

// Period returns the length of the current integration period.
func (s *state) Period() pdtime.MacroTime { return s.period }

// PeriodStart returns the start time of the current integration period.
func (s *state) PeriodStart() pdtime.MacroTime { return s.periodStart }

func (s *state) beginPeriod(targetPeriod pdtime.MacroTime) {
	s.periodComplete = false
	s.periodStart += s.period
	s.period = targetPeriod
	s.count = s.leftoverCount
	s.leftoverCount = 0
}

// TimestampCounter counts raw timestamps per integration period.
type TimestampCounter struct {
	state
}

// NewTimestampCounter returns a counter whose first integration period
// begins at firstPeriodStart.
func NewTimestampCounter(firstPeriodStart pdtime.MacroTime) *TimestampCounter {
	return &TimestampCounter{state: newState(firstPeriodStart)}
}

// CountTimestamps folds ts into the current integration period, advancing
// to targetPeriod when the previous period has completed.
func (c *TimestampCounter) CountTimestamps(ts *pdtime.ChannelTimestamps, targetPeriod pdtime.MacroTime) error {
	if c.periodComplete {
		c.beginPeriod(targetPeriod)
		if c.periodStart+2*c.period <= ts.Until {
			return errors.E("timestamp counter: target integration period is less than the timestamp period")
		}
	}

	periodEnd := c.periodStart + c.period
	if ts.Until <= periodEnd {
		c.count += uint64(len(ts.Macro))
		if ts.Until == periodEnd {
			c.periodComplete = true
		}
		return nil
	}

	splitIdx := sort.Search(len(ts.Macro), func(i int) bool {
		return ts.Macro[i] > periodEnd
	})
	c.count += uint64(splitIdx)
	c.leftoverCount = uint64(len(ts.Macro) - splitIdx)
	c.periodComplete = true
	return nil
}

// HistogramCounter sums histogram bin counts per integration period; the
// target period must be an exact multiple of the histogram's bin width.
type HistogramCounter struct {
	state
}

// NewHistogramCounter returns a counter whose first integration period
// begins at firstPeriodStart.
func NewHistogramCounter(firstPeriodStart pdtime.MacroTime) *HistogramCounter {
	return &HistogramCounter{state: newState(firstPeriodStart)}
}

// CountHistogram folds h into the current integration period.
func (c *HistogramCounter) CountHistogram(h *histogram.Histogram, targetPeriod pdtime.MacroTime) error {
	binSize := h.BinWidth

	if c.periodComplete {
		if targetPeriod%binSize != 0 {
			floor := targetPeriod / binSize * binSize
			return errors.E(fmt.Sprintf(
				"histogram counter: requested integration period %dps is not evenly "+
					"divisible by the histogram bin size %dps; the closest valid periods "+
					"are %dps and %dps",
				targetPeriod, binSize, floor, floor+binSize))
		}
		c.beginPeriod(targetPeriod)

		histEnd := pdtime.MacroTime(h.EndBinIdx) * binSize
		if c.periodStart+2*c.period <= histEnd {
			return errors.E("histogram counter: target integration period is less than the histogram period")
		}
	}

	histEnd := pdtime.MacroTime(h.EndBinIdx) * binSize
	periodEnd := c.periodStart + c.period
	if histEnd <= periodEnd {
		c.count += h.Sum()
		if histEnd == periodEnd {
			c.periodComplete = true
		}
		return nil
	}

	periodEndBin := uint64(periodEnd / binSize)
	splitIdx := int(periodEndBin - h.BeginBinIdx)
	for _, v := range h.Counts[:splitIdx] {
		c.count += uint64(v)
	}
	for _, v := range h.Counts[splitIdx:] {
		c.leftoverCount += uint64(v)
	}
	c.periodComplete = true
	return nil
}

// ROICounter counts timestamps whose microtime falls in a region of
// interest [ROIMin, ROIMax] (inclusive on both ends). The ROI may only be
// changed at a period boundary; if leftovers are pending from a split, a
// newly supplied ROI takes effect on the next period rather than
// retroactively on the leftover counts.
type ROICounter struct {
	state
	roiMin, roiMax       pdtime.MicroTime
	newROIMin, newROIMax pdtime.MicroTime
}

// NewROICounter returns a counter whose first integration period begins
// at firstPeriodStart.
func NewROICounter(firstPeriodStart pdtime.MacroTime) *ROICounter {
	return &ROICounter{state: newState(firstPeriodStart)}
}

// ROI returns the region of interest currently in effect.
func (c *ROICounter) ROI() (min, max pdtime.MicroTime) { return c.roiMin, c.roiMax }

// CountROI folds ts into the current integration period using the given
// region of interest.
func (c *ROICounter) CountROI(ts *pdtime.ChannelTimestamps, targetPeriod pdtime.MacroTime, roiMin, roiMax pdtime.MicroTime) error {
	if c.periodComplete {
		hadLeftover := c.leftoverCount != 0
		c.beginPeriod(targetPeriod)
		if c.periodStart+2*c.period <= ts.Until {
			return errors.E("roi counter: target integration period is less than the timestamp period")
		}
		// If timestamps carried over from a split in the last batch, the
		// ROI for this period was already fixed when that split happened;
		// otherwise the caller's newly supplied ROI applies.
		if !hadLeftover {
			c.roiMin, c.roiMax = roiMin, roiMax
		} else {
			c.roiMin, c.roiMax = c.newROIMin, c.newROIMax
		}
	}

	periodEnd := c.periodStart + c.period
	if ts.Until <= periodEnd {
		for _, u := range ts.Micro {
			if u >= c.roiMin && u <= c.roiMax {
				c.count++
			}
		}
		if ts.Until == periodEnd {
			c.periodComplete = true
		}
		return nil
	}

	c.newROIMin, c.newROIMax = roiMin, roiMax

	splitIdx := sort.Search(len(ts.Macro), func(i int) bool {
		return ts.Macro[i] > periodEnd
	})
	for _, u := range ts.Micro[:splitIdx] {
		if u >= c.roiMin && u <= c.roiMax {
			c.count++
		}
	}
	for _, u := range ts.Micro[splitIdx:] {
		if u >= c.newROIMin && u <= c.newROIMax {
			c.leftoverCount++
		}
	}
	c.periodComplete = true
	return nil
}
