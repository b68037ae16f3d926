package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/pdtime"
)

func TestMockDeviceTimeTaggerServesEnqueuedWindowsInOrder(t *testing.T) {
	d := NewMockDevice(TimeTagger, true, 4)
	d.Enqueue(0, MockSequence{Macro: []pdtime.MacroTime{1, 2}, Micro: []pdtime.MicroTime{5, 6}})
	d.Enqueue(0, MockSequence{Macro: []pdtime.MacroTime{12}, Micro: []pdtime.MicroTime{7}})

	cfg := Config{BinSizeNs: 1, EnabledChannels: []int32{0}}
	dest := NewRawData(cfg)

	require.NoError(t, d.UpdateRawData(context.Background(), 0, 10, dest))
	v, ok := dest.Timestamps.Get(0)
	require.True(t, ok)
	ct := v.(*pdtime.ChannelTimestamps)
	assert.Equal(t, []pdtime.MacroTime{1, 2}, ct.Macro)

	require.NoError(t, d.UpdateRawData(context.Background(), 10, 20, dest))
	v, _ = dest.Timestamps.Get(0)
	ct = v.(*pdtime.ChannelTimestamps)
	assert.Equal(t, []pdtime.MacroTime{12}, ct.Macro)

	err := d.UpdateRawData(context.Background(), 20, 30, dest)
	assert.Error(t, err)
}

func TestMockDeviceHistogrammerBinsEnqueuedMacrotimes(t *testing.T) {
	d := NewMockDevice(Histogrammer, false, 1)
	d.Enqueue(0, MockSequence{Macro: []pdtime.MacroTime{0, 5, 9}})

	cfg := Config{BinSizeNs: 1, EnabledChannels: []int32{0}}
	dest := NewRawData(cfg)
	require.NoError(t, d.UpdateRawData(context.Background(), 0, 10, dest))

	v, ok := dest.Histograms.Get(0)
	require.True(t, ok)
	assert.Equal(t, uint64(3), v.(interface{ Sum() uint64 }).Sum())
}
