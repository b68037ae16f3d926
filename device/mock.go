package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/pdtime"
)

// MockSequence supplies one window's worth of synthetic raw data to
// MockDevice, keyed by channel.
type MockSequence struct {
	Macro  []pdtime.MacroTime
	Micro  []pdtime.MicroTime
	Marker []pdtime.MacroTime
}

// MockDevice is a synthetic TimeTagger or Histogrammer used to drive the
// orchestrator in tests without hardware. Windows are supplied in advance
// via Enqueue; UpdateRawData pops one window per call and errors once the
// supply is exhausted, standing in for "processing caught up with a
// device that has stopped producing data".
type MockDevice struct {
	kind              Kind
	generatesMicro    bool
	microResolutionPs uint64

	mu      sync.Mutex
	windows map[int32][]MockSequence
}

// NewMockDevice constructs a MockDevice of the given kind.
func NewMockDevice(kind Kind, generatesMicrotimes bool, microtimeResolutionPs uint64) *MockDevice {
	return &MockDevice{
		kind:              kind,
		generatesMicro:    generatesMicrotimes,
		microResolutionPs: microtimeResolutionPs,
		windows:           make(map[int32][]MockSequence),
	}
}

// Enqueue appends one window's data for channel, to be returned by a
// future UpdateRawData call in FIFO order.
func (d *MockDevice) Enqueue(channel int32, seq MockSequence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[channel] = append(d.windows[channel], seq)
}

// Start begins a no-op session; cfg is ignored since MockDevice's raw
// data is supplied directly via Enqueue rather than derived from config.
func (d *MockDevice) Start(ctx context.Context, cfg Config) (Session, error) {
	return mockSession{}, nil
}

type mockSession struct{}

func (mockSession) Stop() error { return nil }

// DeviceKind reports the kind passed to NewMockDevice.
func (d *MockDevice) DeviceKind() Kind { return d.kind }

// GeneratesMicrotimes reports the value passed to NewMockDevice.
func (d *MockDevice) GeneratesMicrotimes() bool { return d.generatesMicro }

// MicrotimeResolutionPs reports the value passed to NewMockDevice.
func (d *MockDevice) MicrotimeResolutionPs() uint64 { return d.microResolutionPs }

// UpdateRawData pops one enqueued window per channel present in dest and
// populates the corresponding timestamps, histograms, or markers.
func (d *MockDevice) UpdateRawData(ctx context.Context, beginBinIdx, endBinIdx uint64, dest *RawData) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	visit := func(channel int32) error {
		queue := d.windows[channel]
		if len(queue) == 0 {
			return errors.E(ErrProcessingTooSlow, fmt.Sprintf("device: no enqueued window for channel %d", channel))
		}
		seq := queue[0]
		d.windows[channel] = queue[1:]

		if d.kind == TimeTagger {
			if v, ok := dest.Timestamps.Get(channel); ok {
				ct := v.(*pdtime.ChannelTimestamps)
				ct.Macro = seq.Macro
				ct.Micro = seq.Micro
				ct.SetSpan(pdtime.MacroTime(beginBinIdx), pdtime.MacroTime(endBinIdx))
			}
		} else {
			if v, ok := dest.Histograms.Get(channel); ok {
				h := v.(*histogram.Histogram)
				if err := h.BinMacroTimes(seq.Macro, beginBinIdx, endBinIdx); err != nil {
					return err
				}
			}
		}
		if v, ok := dest.MarkerTimestamps.Get(channel); ok && len(seq.Marker) > 0 {
			mt := v.(*pdtime.ChannelTimestamps)
			mt.Macro = seq.Marker
			mt.SetSpan(pdtime.MacroTime(beginBinIdx), pdtime.MacroTime(endBinIdx))
		}
		return nil
	}

	var firstErr error
	dest.Timestamps.Each(func(channel int32, _ interface{}) {
		if err := visit(channel); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
