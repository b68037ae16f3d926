// Package device defines the contract the orchestrator uses to drive a
// physical or simulated photon-counting instrument, and supplies a
// synthetic reference implementation for testing the orchestrator without
// hardware.
package device

import (
	"context"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/keyed"
	"github.com/grailbio/pando/pdtime"
)

// Kind distinguishes the shape of raw data a Device produces.
type Kind int

const (
	// TimeTagger devices populate RawData.Timestamps.
	TimeTagger Kind = iota
	// Histogrammer devices populate RawData.Histograms.
	Histogrammer
)

// Config is the subset of acquisition configuration a Device needs to
// start a session and a RawData destination needs to be shaped against.
// Hardware-specific tuning (discriminator levels, sync dividers, firmware
// paths) is out of the core's scope; it lives behind whatever concrete
// Device a deployment wires in.
type Config struct {
	BinSizeNs         uint64
	EnabledChannels   []int32
	LaserSyncPeriodPs uint64
}

// RawData is the destination UpdateRawData populates for one window. It
// mirrors DeviceBase::RawData: timestamps, histograms, and marker
// timestamps are alternatives, not all populated on every call — which
// fields matter depends on the Device's Kind.
type RawData struct {
	Timestamps       *keyed.Container
	Histograms       *keyed.Container
	MarkerTimestamps *keyed.Container
}

// NewRawData builds a RawData shaped for cfg's enabled channels, with
// fresh zero-value per-channel timestamp and histogram slots.
func NewRawData(cfg Config) *RawData {
	return &RawData{
		Timestamps: keyed.New(cfg.EnabledChannels, func(int32) interface{} {
			return &pdtime.ChannelTimestamps{}
		}),
		Histograms: keyed.New(cfg.EnabledChannels, func(int32) interface{} {
			return histogram.New(pdtime.MacroTime(cfg.BinSizeNs) * 1000)
		}),
		MarkerTimestamps: keyed.New(cfg.EnabledChannels, func(int32) interface{} {
			return &pdtime.ChannelTimestamps{}
		}),
	}
}

// Session represents one in-progress acquisition; Stop ends it.
type Session interface {
	Stop() error
}

// Device drives a single photon-counting instrument. UpdateRawData is
// called repeatedly with contiguous, non-overlapping bin-index ranges
// (the first call's beginBinIdx is always 0, and each subsequent call's
// beginBinIdx equals the previous call's endBinIdx); it is expected to
// block until the requested time interval has actually elapsed.
type Device interface {
	Start(ctx context.Context, cfg Config) (Session, error)
	UpdateRawData(ctx context.Context, beginBinIdx, endBinIdx uint64, dest *RawData) error
	DeviceKind() Kind
	GeneratesMicrotimes() bool
	MicrotimeResolutionPs() uint64
}

// ErrProcessingTooSlow is returned by a Device's UpdateRawData when the
// caller has fallen significantly behind real time.
var ErrProcessingTooSlow = errors.E("device: processing is too slow")
