// Package correlator computes a multi-tau, exponentially-rebinned time
// autocorrelation (g2) from a macrotime histogram, recomputed on every
// update from a single root bin width and successively coarser child
// levels that share one result buffer.
package correlator

import (
	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

// Result holds g2 lag times (TauK) and normalised correlation values (G2),
// indexed in parallel across every correlator level: level 0 occupies a
// prefix, each subsequent (coarser) level occupies the following
// contiguous slice.
type Result struct {
	TauK []pdtime.MacroTime
	G2   []float64
}

// Correlator is one level of the multi-tau chain. The root owns the
// shared Result buffer and its child levels' (start, length) slices into
// it; children are never used directly by callers.
type Correlator struct {
	binSize        pdtime.MacroTime
	pointsPerLevel int
	nLevels        int
	rebinFactor    int
	firstOffset    int
	length         int
	startIdx       int

	rebinned *histogram.Histogram
	child    *Correlator

	result *Result
}

// New constructs a correlator with the given starting bin width, the
// number of lag points computed per level before rebinning, the total
// number of levels (1 means no rebinning), and the rebin factor applied
// between levels.
func New(binSize pdtime.MacroTime, pointsPerLevel, nLevels, rebinFactor int) (*Correlator, error) {
	if pointsPerLevel <= 0 {
		return nil, errors.E("correlator: points per level must be positive")
	}
	if nLevels <= 0 {
		return nil, errors.E("correlator: must have at least one level")
	}
	if nLevels > 1 && rebinFactor < 2 {
		return nil, errors.E("correlator: rebin factor must be at least 2 when using more than one level")
	}

	size := totalSize(pointsPerLevel, nLevels, rebinFactor)
	result := &Result{
		TauK: make([]pdtime.MacroTime, size),
		G2:   make([]float64, size),
	}

	root := newLevel(binSize, pointsPerLevel, nLevels, rebinFactor, 0, 0, result)
	return root, nil
}

func totalSize(pointsPerLevel, nLevels, rebinFactor int) int {
	if nLevels <= 1 {
		return pointsPerLevel
	}
	firstOffset := ceilDiv(pointsPerLevel, rebinFactor)
	return pointsPerLevel + (nLevels-1)*(pointsPerLevel-firstOffset)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func newLevel(binSize pdtime.MacroTime, pointsPerLevel, nLevels, rebinFactor, firstOffset, startIdx int, result *Result) *Correlator {
	c := &Correlator{
		binSize:        binSize,
		pointsPerLevel: pointsPerLevel,
		nLevels:        nLevels,
		rebinFactor:    rebinFactor,
		firstOffset:    firstOffset,
		length:         pointsPerLevel - firstOffset,
		startIdx:       startIdx,
		result:         result,
	}
	if nLevels > 1 {
		c.rebinned = histogram.New(binSize * pdtime.MacroTime(rebinFactor))
		childFirstOffset := ceilDiv(pointsPerLevel, rebinFactor)
		c.child = newLevel(
			binSize*pdtime.MacroTime(rebinFactor),
			pointsPerLevel, nLevels-1, rebinFactor,
			childFirstOffset,
			startIdx+pointsPerLevel-firstOffset,
			result,
		)
	}
	return c
}

// UpdateG2 recomputes g2 from a freshly binned macrotime histogram at the
// root's bin width, rebinning into successively coarser child levels, and
// returns the shared result.
func (c *Correlator) UpdateG2(binned *histogram.Histogram) (*Result, error) {
	if binned.BinWidth != c.binSize {
		return nil, errors.E("correlator: input has wrong bin size")
	}
	if err := c.updateImpl(binned); err != nil {
		return nil, err
	}
	return c.result, nil
}

// GetResult returns the most recently computed result.
func (c *Correlator) GetResult() *Result { return c.result }

func (c *Correlator) updateImpl(binned *histogram.Histogram) error {
	if c.child != nil {
		if err := c.rebinned.Rebin(binned); err != nil {
			return err
		}
		if err := c.child.updateImpl(c.rebinned); err != nil {
			return err
		}
	}

	binCount := binned.Len()
	if binCount < c.pointsPerLevel {
		return errors.E("correlator: too few bins to compute correlation at maximum offset")
	}

	counts := binned.Counts
	for k := c.firstOffset; k < c.pointsPerLevel; k++ {
		var prodAccum, leftAccum, rightAccum int64
		n := binCount - k
		for i := 0; i < n; i++ {
			prodAccum += int64(counts[i]) * int64(counts[i+k])
			leftAccum += int64(counts[i])
			rightAccum += int64(counts[i+k])
		}

		g2x := 1.0
		if leftAccum != 0 && rightAccum != 0 {
			g2x = float64(n) * float64(prodAccum) / (float64(leftAccum) * float64(rightAccum))
		}

		idx := c.startIdx + (k - c.firstOffset)
		c.result.G2[idx] = g2x
		c.result.TauK[idx] = pdtime.MacroTime(k) * c.binSize
	}
	return nil
}
