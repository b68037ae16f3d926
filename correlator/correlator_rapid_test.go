package correlator

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

// TestRapidUniformCountsYieldUnityG2 checks invariant 3: a single-level
// correlator fed a constant-rate (uniform-count) histogram always reports
// g2 == 1.0 at every lag, regardless of bin width, point count, or the
// constant rate itself -- including the all-zero case, where the
// undefined 0/0 ratio is defined to read as unity rather than NaN.
func TestRapidUniformCountsYieldUnityG2(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pointsPerLevel := rapid.IntRange(1, 16).Draw(t, "pointsPerLevel")
		binCount := rapid.IntRange(pointsPerLevel, pointsPerLevel+16).Draw(t, "binCount")
		binSize := pdtime.MacroTime(rapid.Int64Range(1, 1000).Draw(t, "binSize"))
		constCount := rapid.Uint32Range(0, 1000).Draw(t, "constCount")

		c, err := New(binSize, pointsPerLevel, 1, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		h := histogram.New(binSize)
		h.SetSpan(0, uint64(binCount))
		for i := range h.Counts {
			h.Counts[i] = constCount
		}

		result, err := c.UpdateG2(h)
		if err != nil {
			t.Fatalf("UpdateG2: %v", err)
		}
		for i, g := range result.G2 {
			if g != 1.0 {
				t.Fatalf("G2[%d] = %v, want 1.0 (constCount=%d, binCount=%d)", i, g, constCount, binCount)
			}
		}
	})
}
