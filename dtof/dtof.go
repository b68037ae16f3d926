// Package dtof computes the distribution of photon time-of-flight (DTOF):
// a per-channel histogram of microtimes within one laser-sync period,
// accumulated over a configurable integration window that may span
// multiple calls to Generate.
package dtof

import (
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/pdtime"
)

// Accumulator computes a DTOF for one channel.
//
// BinWidth must be >= DataResolution and an integer multiple of it.
// RangeMin is snapped down to the nearest bin edge; RangeMax is snapped up.
// Microtimes are admitted in [RangeMin, RangeMax+BinWidth) — literally,
// per the source this was distilled from, including the extra trailing
// bin width on the upper bound.
type Accumulator struct {
	BinWidth       pdtime.MicroTime
	DataResolution pdtime.MicroTime
	RangeMin       pdtime.MicroTime
	RangeMax       pdtime.MicroTime

	size int

	periodStart pdtime.MacroTime
	period      pdtime.MacroTime
	periodDone  bool
	counts      []uint32
	leftover    []uint32
}

// New constructs a DTOF accumulator. rangeMin/rangeMax describe the
// requested microtime window; the effective window after bin-edge
// snapping is available via RangeMin/RangeMax/Size after construction.
func New(binWidth, dataResolution, rangeMin, rangeMax pdtime.MicroTime, firstPeriodStart pdtime.MacroTime) (*Accumulator, error) {
	if binWidth < dataResolution {
		return nil, errors.E("dtof: bin width is smaller than data resolution")
	}
	if binWidth%dataResolution != 0 {
		return nil, errors.E("dtof: bin width is not divisible by the data resolution")
	}
	if rangeMax < rangeMin {
		return nil, errors.E("dtof: range_max is less than range_min")
	}

	a := &Accumulator{
		BinWidth:       binWidth,
		DataResolution: dataResolution,
		periodStart:    firstPeriodStart,
		periodDone:     true,
	}
	a.RangeMin = (rangeMin / binWidth) * binWidth
	if rangeMax%binWidth == 0 {
		a.RangeMax = rangeMax
	} else {
		a.RangeMax = (rangeMax/binWidth + 1) * binWidth
	}
	a.size = int((a.RangeMax-a.RangeMin)/binWidth) + 1
	return a, nil
}

// Size returns the number of bins in the DTOF.
func (a *Accumulator) Size() int { return a.size }

// Counts returns the currently accumulated bin counts for the active period.
func (a *Accumulator) Counts() []uint32 { return a.counts }

// PeriodComplete reports whether the current integration period has
// finished and Counts() holds its final value.
func (a *Accumulator) PeriodComplete() bool { return a.periodDone }

// PeriodStart returns the start time of the current integration period.
func (a *Accumulator) PeriodStart() pdtime.MacroTime { return a.periodStart }

// Period returns the length of the current integration period.
func (a *Accumulator) Period() pdtime.MacroTime { return a.period }

// Generate bins ts into the DTOF, advancing the integration period as
// needed so that target_period is applied starting at the next period
// boundary after the current one completes.
func (a *Accumulator) Generate(ts *pdtime.ChannelTimestamps, targetPeriod pdtime.MacroTime) error {
	if a.periodDone {
		a.periodDone = false
		a.periodStart += a.period
		a.period = targetPeriod

		if a.periodStart+2*a.period <= ts.Until {
			return errors.E("dtof: target integration period is less than the timestamp period")
		}

		if len(a.leftover) != 0 {
			a.counts, a.leftover = a.leftover, a.counts[:0]
		} else {
			if cap(a.counts) >= a.size {
				a.counts = a.counts[:a.size]
			} else {
				a.counts = make([]uint32, a.size)
			}
			for i := range a.counts {
				a.counts[i] = 0
			}
		}
	}

	periodEnd := a.periodStart + a.period
	if ts.Until <= periodEnd {
		for _, u := range ts.Micro {
			a.bin(a.counts, u)
		}
		if ts.Until == periodEnd {
			a.periodDone = true
		}
		return nil
	}

	// Part of these timestamps belong to the next period; find the split
	// point by lower-bounding on macrotimes.
	splitIdx := sort.Search(len(ts.Macro), func(i int) bool {
		return ts.Macro[i] >= periodEnd
	})

	for _, u := range ts.Micro[:splitIdx] {
		a.bin(a.counts, u)
	}

	if cap(a.leftover) >= a.size {
		a.leftover = a.leftover[:a.size]
	} else {
		a.leftover = make([]uint32, a.size)
	}
	for i := range a.leftover {
		a.leftover[i] = 0
	}
	for _, u := range ts.Micro[splitIdx:] {
		a.bin(a.leftover, u)
	}

	a.periodDone = true
	return nil
}

func (a *Accumulator) bin(dst []uint32, u pdtime.MicroTime) {
	if u >= a.RangeMin && u < a.RangeMax+a.BinWidth {
		dst[(u-a.RangeMin)/a.BinWidth]++
	}
}
