// Package histogram implements a mutable, fixed-span bin vector used to
// bin macrotimes and to rebin by an integer factor. It is the innermost
// building block of the correlator's exponential-rebinning chain.
package histogram

import (
	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/pdtime"
)

// Histogram is a dense vector of 32-bit counts over the bin range
// [BeginBinIdx, EndBinIdx), with a fixed bin width. Every macrotime fed
// into BinMacroTimes must fall in [BeginBinIdx*BinWidth, EndBinIdx*BinWidth);
// exceeding either side is an error.
type Histogram struct {
	BinWidth     pdtime.MacroTime
	BeginBinIdx  uint64
	EndBinIdx    uint64
	Counts       []uint32
}

// New returns an empty Histogram with the given bin width.
func New(binWidth pdtime.MacroTime) *Histogram {
	return &Histogram{BinWidth: binWidth}
}

// SetSpan resets the histogram to an all-zero vector spanning
// [beginBinIdx, endBinIdx).
func (h *Histogram) SetSpan(beginBinIdx, endBinIdx uint64) {
	h.BeginBinIdx = beginBinIdx
	h.EndBinIdx = endBinIdx
	n := int(endBinIdx - beginBinIdx)
	if cap(h.Counts) >= n {
		h.Counts = h.Counts[:n]
		for i := range h.Counts {
			h.Counts[i] = 0
		}
	} else {
		h.Counts = make([]uint32, n)
	}
}

// BinMacroTimes sets the span to [beginBinIdx, endBinIdx), zero-fills, and
// bins each (pre-sorted, non-decreasing) macrotime by walking them in
// order and advancing the current bin edge as needed. It fails if the
// first time lies before the first bin, or if binning would advance past
// the last bin.
func (h *Histogram) BinMacroTimes(times []pdtime.MacroTime, beginBinIdx, endBinIdx uint64) error {
	h.SetSpan(beginBinIdx, endBinIdx)
	if len(times) == 0 {
		return nil
	}
	if times[0] < pdtime.MacroTime(beginBinIdx)*h.BinWidth {
		return errors.E("histogram: first timestamp lies before first bin")
	}

	currentBin := 0
	nextBinEdge := pdtime.MacroTime(beginBinIdx+1) * h.BinWidth
	for _, t := range times {
		for t >= nextBinEdge {
			nextBinEdge += h.BinWidth
			currentBin++
			if currentBin >= len(h.Counts) {
				return errors.E("histogram: too few bins to hold all timestamps")
			}
		}
		h.Counts[currentBin]++
	}
	return nil
}

// Rebin resizes h to src.Len()/k and sums consecutive runs of k source
// counts into each destination bin, where k = h.BinWidth/src.BinWidth.
// It requires that ratio to be an exact integer and src's length to be
// evenly divisible by k. The begin/end bin indices are scaled by 1/k.
func (h *Histogram) Rebin(src *Histogram) error {
	if h.BinWidth == 0 || src.BinWidth == 0 {
		return errors.E("histogram: rebin requires nonzero bin widths")
	}
	if h.BinWidth%src.BinWidth != 0 {
		return errors.E("histogram: rebin factor is not an integer multiple of source bin width")
	}
	k := int(h.BinWidth / src.BinWidth)
	if len(src.Counts)%k != 0 {
		return errors.E("histogram: source length not evenly divisible by rebin factor")
	}

	n := len(src.Counts) / k
	if cap(h.Counts) >= n {
		h.Counts = h.Counts[:n]
	} else {
		h.Counts = make([]uint32, n)
	}
	for dst := 0; dst < n; dst++ {
		var sum uint32
		base := dst * k
		for i := 0; i < k; i++ {
			sum += src.Counts[base+i]
		}
		h.Counts[dst] = sum
	}
	h.BeginBinIdx = src.BeginBinIdx / uint64(k)
	h.EndBinIdx = src.EndBinIdx / uint64(k)
	return nil
}

// Len returns the number of bins.
func (h *Histogram) Len() int {
	return len(h.Counts)
}

// Sum returns the total of all bin counts.
func (h *Histogram) Sum() uint64 {
	var total uint64
	for _, c := range h.Counts {
		total += uint64(c)
	}
	return total
}
