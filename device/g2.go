package device

import (
	"context"

	"github.com/grailbio/pando/pdtime"
)

// G2Result is one channel's device-computed correlation curve for a frame.
// UtimeFrom/UtimeUntil are only meaningful when the frame carries
// intensity-gated (g2i) results; a zero-width window means "ungated".
type G2Result struct {
	TauK       []pdtime.MacroTime
	G2         []float64
	UtimeFrom  pdtime.MicroTime
	UtimeUntil pdtime.MicroTime
}

// G2Frame is one frame's worth of device-native results: the frame's index
// (used both for PPS-timeout estimation and for archive/publish sequencing),
// per-channel photon counts, per-channel g2 (or g2i) curves, and whatever
// marker edges (including the PPS reference) arrived during the frame.
type G2Frame struct {
	BeginFrameIdx    uint64
	Counts           map[int32]uint64
	G2               map[int32]G2Result
	MarkerTimestamps *pdtime.ChannelTimestamps
}

// G2Device drives an instrument that computes g2 (and optionally g2i) and
// count rates on-instrument, delivering one completed G2Frame per call
// instead of raw timestamps for host-side correlation. Unlike Device, a
// G2Device reports its own frame period rather than taking bin-index
// ranges, since the instrument -- not the host -- owns the integration
// clock.
type G2Device interface {
	Start(ctx context.Context, cfg Config) (Session, error)
	NextFrame(ctx context.Context) (G2Frame, error)
	FramePeriodNs() uint64
}
