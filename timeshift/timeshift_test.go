package timeshift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/pdtime"
)

func ns(n int64) pdtime.MacroTime { return pdtime.MacroTime(n * 1000) }

// Mirrors the "PPS discipline" scenario: edges at 0s, 0s (spurious),
// 1s+1ns, 2s+1ns, 4s+1ns, 7s+1ns.
func TestPpsDiscipline(t *testing.T) {
	ts := New(0)

	stats, rejected, err := ts.Adjust(0)
	require.NoError(t, err)
	require.False(t, rejected)
	assert.EqualValues(t, 0, stats.Offset)
	assert.EqualValues(t, 0, stats.Jitter)

	_, rejected, err = ts.Adjust(0)
	require.NoError(t, err)
	assert.True(t, rejected)

	stats, rejected, err = ts.Adjust(pdtime.MacroTime(Second) + ns(1))
	require.NoError(t, err)
	require.False(t, rejected)
	assert.EqualValues(t, ns(1), stats.Offset)
	assert.EqualValues(t, ns(1), stats.Jitter)

	stats, rejected, err = ts.Adjust(pdtime.MacroTime(2*Second) + ns(1))
	require.NoError(t, err)
	require.False(t, rejected)
	assert.EqualValues(t, ns(1), stats.Offset)
	assert.EqualValues(t, 0, stats.Jitter)

	stats, rejected, err = ts.Adjust(pdtime.MacroTime(4*Second) + ns(1))
	require.NoError(t, err)
	require.False(t, rejected)
	assert.EqualValues(t, ns(1), stats.Offset)
	assert.EqualValues(t, 0, stats.Jitter)

	_, _, err = ts.Adjust(pdtime.MacroTime(7*Second) + ns(1))
	assert.Error(t, err)
}

func TestShiftSubtractsOffset(t *testing.T) {
	ts := New(0)
	_, _, err := ts.Adjust(0)
	require.NoError(t, err)
	_, _, err = ts.Adjust(pdtime.MacroTime(Second) + ns(5))
	require.NoError(t, err)

	shifted := ts.Shift(pdtime.MacroTime(10 * Second))
	assert.EqualValues(t, int64(10*Second)-5000, int64(shifted))
}

func TestIsPrimedBecomesTrueAfterFirstAccept(t *testing.T) {
	ts := New(0)
	assert.False(t, ts.IsPrimed())
	_, _, err := ts.Adjust(0)
	require.NoError(t, err)
	assert.True(t, ts.IsPrimed())
}
