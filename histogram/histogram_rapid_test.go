package histogram

import (
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/grailbio/pando/pdtime"
)

// TestRapidBinMacroTimesPreservesCount checks invariant 1: binning any
// sorted run of timestamps that all fall within [beginBinIdx, endBinIdx)
// never drops or duplicates a count -- the sum of the resulting histogram
// always equals the number of timestamps fed in.
func TestRapidBinMacroTimesPreservesCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		binWidth := pdtime.MacroTime(rapid.Int64Range(1, 1000).Draw(t, "binWidth"))
		beginBinIdx := rapid.Uint64Range(0, 5).Draw(t, "beginBinIdx")
		nBins := rapid.Uint64Range(1, 20).Draw(t, "nBins")
		endBinIdx := beginBinIdx + nBins
		n := rapid.IntRange(0, 50).Draw(t, "n")

		span := int64(nBins) * int64(binWidth)
		offsets := make([]int64, n)
		for i := range offsets {
			offsets[i] = rapid.Int64Range(0, span-1).Draw(t, "offset")
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

		base := pdtime.MacroTime(beginBinIdx) * binWidth
		times := make([]pdtime.MacroTime, n)
		for i, off := range offsets {
			times[i] = base + pdtime.MacroTime(off)
		}

		h := New(binWidth)
		if err := h.BinMacroTimes(times, beginBinIdx, endBinIdx); err != nil {
			t.Fatalf("BinMacroTimes(%d values, [%d,%d)): %v", n, beginBinIdx, endBinIdx, err)
		}
		if got := h.Sum(); got != uint64(n) {
			t.Fatalf("Sum() = %d, want %d", got, n)
		}
	})
}

// TestRapidRebinPreservesTotal checks invariant 2: rebinning by any valid
// integer factor never changes the total count, only how it's grouped.
func TestRapidRebinPreservesTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		srcBinWidth := pdtime.MacroTime(rapid.Int64Range(1, 100).Draw(t, "srcBinWidth"))
		factor := rapid.IntRange(1, 8).Draw(t, "factor")
		nDstBins := rapid.IntRange(1, 16).Draw(t, "nDstBins")
		nSrcBins := nDstBins * factor

		src := New(srcBinWidth)
		src.SetSpan(0, uint64(nSrcBins))
		for i := range src.Counts {
			src.Counts[i] = rapid.Uint32Range(0, 1000).Draw(t, "count")
		}

		dst := New(srcBinWidth * pdtime.MacroTime(factor))
		if err := dst.Rebin(src); err != nil {
			t.Fatalf("Rebin: %v", err)
		}
		if dst.Sum() != src.Sum() {
			t.Fatalf("dst.Sum()=%d, src.Sum()=%d", dst.Sum(), src.Sum())
		}
	})
}
