package timeshift

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/grailbio/pando/pdtime"
)

// TestRapidSingleOrNoMissedEdgeRecovers checks invariant 8: once primed,
// a pulse arriving at the normal one-second cadence or exactly one cadence
// late (a single missed edge) is always accepted, never rejected or
// errored, regardless of small jitter around the expected edge.
func TestRapidSingleOrNoMissedEdgeRecovers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ts := New(0)
		if _, rejected, err := ts.Adjust(0); err != nil || rejected {
			t.Fatalf("priming pulse: rejected=%v err=%v", rejected, err)
		}

		missed := rapid.IntRange(0, 1).Draw(t, "missedEdges")
		jitterPs := rapid.Int64Range(-100_000_000_000, 100_000_000_000).Draw(t, "jitterPs")
		next := pdtime.MacroTime(int64(Second)*int64(missed+1) + jitterPs)

		_, rejected, err := ts.Adjust(next)
		if err != nil {
			t.Fatalf("Adjust after %d missed edge(s): unexpected error: %v", missed, err)
		}
		if rejected {
			t.Fatalf("Adjust after %d missed edge(s): unexpectedly rejected", missed)
		}
	})
}

// TestRapidMultipleMissedEdgesError checks invariant 9: two or more
// consecutive missed PPS edges are never silently recovered -- Adjust
// always reports an error rather than guessing how many edges were lost.
func TestRapidMultipleMissedEdgesError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ts := New(0)
		if _, rejected, err := ts.Adjust(0); err != nil || rejected {
			t.Fatalf("priming pulse: rejected=%v err=%v", rejected, err)
		}

		missed := rapid.IntRange(2, 20).Draw(t, "missedEdges")
		next := pdtime.MacroTime(int64(Second) * int64(missed+1))

		if _, _, err := ts.Adjust(next); err == nil {
			t.Fatalf("Adjust after %d missed edges: expected error, got none", missed)
		}
	})
}
