package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/archive"
	"github.com/grailbio/pando/codec"
	"github.com/grailbio/pando/device"
	"github.com/grailbio/pando/health"
	"github.com/grailbio/pando/pdtime"
	"github.com/grailbio/pando/publish"
	"github.com/grailbio/pando/schema"
	"github.com/grailbio/pando/timeshift"
)

// pf32G2Holdoff stands in for pf32_g2.cpp's genuinely zero PPS holdoff:
// timeshift.New treats a holdoff of exactly 0 as "use DefaultHoldoff", so a
// PF32G2Processor asks for the smallest representable nonzero holdoff
// instead, rather than silently inheriting the 500ms default a device that
// disciplines PPS on every frame was never meant to have.
const pf32G2Holdoff = timeshift.Duration(1)

// PF32G2Processor runs the orchestrator life cycle for devices that compute
// g2 (or g2i) and photon counts on-instrument, publishing whatever frames
// the device delivers instead of folding host-side timestamps into
// correlators and counters. Each frame is processed synchronously as it
// arrives: unlike DeviceProcessor there is no ping-pong raw-data buffer or
// async worker dispatch to overlap device I/O with processing, since a
// G2Device's NextFrame already blocks for exactly one integration period.
type PF32G2Processor struct {
	shared

	dev      device.G2Device
	archiver archive.Archiver
	monitor  *health.Monitor

	config  Config
	session device.Session

	stop   chan struct{}
	done   chan struct{}
	runErr error
}

// NewPF32G2Processor constructs a processor. serializer defaults to
// codec.GogoSerializer{} if nil.
func NewPF32G2Processor(dev device.G2Device, publisher publish.Publisher, serializer publish.Serializer, archiver archive.Archiver, monitor *health.Monitor) *PF32G2Processor {
	if serializer == nil {
		serializer = codec.GogoSerializer{}
	}
	return &PF32G2Processor{
		shared:   shared{publisher: publisher, serializer: serializer},
		dev:      dev,
		archiver: archiver,
		monitor:  monitor,
	}
}

// Start starts the device and spawns the Run loop in the background; there
// is no rendezvous call. Start does not wait for a PPS edge or emit the
// START event: PPS priming (if configured) and the START event happen
// inside the background loop, and a failure there is reported through Done
// and Err rather than by Start's return value. PF32G2Processor has no DynamicConfig hook:
// the device, not the host, owns the integration clock, so there is no
// per-window bin count to re-read.
func (p *PF32G2Processor) Start(ctx context.Context, experimentID int32, cfg Config) error {
	p.experimentID = experimentID
	p.config = cfg
	p.countSeq, p.markerSeq, p.ppsSeq, p.eventSeq, p.g2Seq = 0, 0, 0, 0, 0

	sess, err := p.dev.Start(ctx, device.Config{
		BinSizeNs:         cfg.BinSizeNs,
		EnabledChannels:   cfg.EnabledChannels,
		LaserSyncPeriodPs: cfg.LaserSyncPeriodPs,
	})
	if err != nil {
		return errors.E(err, "orchestrator: starting g2 device")
	}
	p.session = sess

	p.timeShifter = timeshift.New(pf32G2Holdoff)

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
	return nil
}

// Stop signals the Run loop to finish after its current frame, waits for it
// to drain, and closes the archive if one was opened.
func (p *PF32G2Processor) Stop(ctx context.Context) error {
	close(p.stop)
	<-p.done

	if p.session != nil {
		if err := p.session.Stop(); err != nil {
			return errors.E(err, "orchestrator: stopping g2 device session")
		}
	}
	if p.archiver != nil {
		if err := p.archiver.Close(ctx); err != nil {
			return errors.E(err, "orchestrator: closing archive")
		}
	}
	return p.runErr
}

// Done is closed once the Run loop has returned, whether due to Stop or a
// fatal error.
func (p *PF32G2Processor) Done() <-chan struct{} { return p.done }

// Err returns the Run loop's terminal error, if any. Only meaningful after
// Done is closed.
func (p *PF32G2Processor) Err() error { return p.runErr }

func (p *PF32G2Processor) fail(err error) error {
	p.runErr = err
	if p.monitor != nil {
		p.monitor.ReportFatal(err)
	}
	close(p.done)
	return err
}

// run primes PPS (if configured) by estimating elapsed acquisition time from
// the device's own frame index and period -- BeginFrameIdx*FramePeriodNs --
// rather than DeviceProcessor's host-tracked bin index, since a G2Device
// never reports a bin index for the host to track. Frames fetched while
// priming only feed their marker edges to the time shifter; their g2,
// counts and markers packets are not published. It then emits the START
// event and processes frames synchronously until Stop is signalled.
func (p *PF32G2Processor) run(ctx context.Context) {
	cfg := p.config
	framePeriodNs := p.dev.FramePeriodNs()

	for cfg.UsePPS && !p.timeShifter.IsPrimed() {
		frame, err := p.dev.NextFrame(ctx)
		if err != nil {
			p.fail(errors.E(err, "orchestrator: fetching device frame while priming PPS"))
			return
		}
		if frame.BeginFrameIdx*framePeriodNs >= ppsTimeoutNs {
			p.fail(errors.E("orchestrator: waited more than 20s for first PPS pulse; is a PPS signal connected to marker channel 0?"))
			return
		}
		if err := p.handleFrameMarkers(ctx, frame); err != nil {
			p.fail(err)
			return
		}
	}

	if err := p.publishEvent(ctx, schema.EventStart, p.timeShifter.Shift(0)); err != nil {
		p.fail(err)
		return
	}

	var lastShifted pdtime.MacroTime
loop:
	for {
		select {
		case <-p.stop:
			break loop
		default:
		}

		frame, err := p.dev.NextFrame(ctx)
		if err != nil {
			p.fail(errors.E(err, "orchestrator: fetching device frame"))
			return
		}
		lastShifted = p.timeShifter.Shift(frameTimestamp(frame, framePeriodNs))
		if err := p.process(ctx, frame, framePeriodNs); err != nil {
			p.fail(err)
			return
		}
	}

	if err := p.publishEvent(ctx, schema.EventStop, lastShifted); err != nil {
		p.fail(err)
		return
	}
	close(p.done)
}

// frameTimestamp converts a frame's device-reported index into a macrotime,
// the same picosecond convention DeviceProcessor uses for bin indices.
func frameTimestamp(frame device.G2Frame, framePeriodNs uint64) pdtime.MacroTime {
	return pdtime.MacroTime(frame.BeginFrameIdx*framePeriodNs) * 1000
}

// process publishes (and, if configured, archives) one frame's packets in
// topic order g2/g2i -> counts -> markers -> pps_stats, then folds any PPS
// marker edges into the time shifter. Unlike DeviceProcessor's
// processWindow, there is no per-channel fan-out: the device already
// computed g2 and counts per channel, so this is a straight-line build and
// publish.
func (p *PF32G2Processor) process(ctx context.Context, frame device.G2Frame, framePeriodNs uint64) error {
	shifted := p.timeShifter.Shift(frameTimestamp(frame, framePeriodNs))

	if pkt, ok := p.buildFrameG2Packet(frame, shifted); ok {
		if err := p.publishAndArchive(ctx, pkt, frame.BeginFrameIdx); err != nil {
			return err
		}
	}
	if pkt, ok := p.buildFrameCountsPacket(frame, shifted, framePeriodNs); ok {
		if err := p.publishAndArchive(ctx, pkt, frame.BeginFrameIdx); err != nil {
			return err
		}
	}
	if pkt, ok := p.buildFrameMarkersPacket(frame, shifted); ok {
		if err := p.publishAndArchive(ctx, pkt, frame.BeginFrameIdx); err != nil {
			return err
		}
	}
	if p.config.UsePPS {
		if err := p.handleFrameMarkers(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

func (p *PF32G2Processor) publishAndArchive(ctx context.Context, pkt schema.Packet, beginFrameIdx uint64) error {
	if err := p.publishPacket(ctx, pkt); err != nil {
		return err
	}
	if p.archiver == nil || !p.config.LogRawData {
		return nil
	}
	data, err := p.serializer.Marshal(pkt)
	if err != nil {
		return errors.E(err, fmt.Sprintf("orchestrator: serializing raw %s record", pkt.Payload.Topic()))
	}
	if err := p.archiver.Append(ctx, pkt.Payload.Topic(), int64(beginFrameIdx), data); err != nil {
		return errors.E(err, fmt.Sprintf("orchestrator: archiving raw %s record", pkt.Payload.Topic()))
	}
	return nil
}

func (p *PF32G2Processor) handleFrameMarkers(ctx context.Context, frame device.G2Frame) error {
	if frame.MarkerTimestamps == nil {
		return nil
	}
	for _, t := range frame.MarkerTimestamps.Macro {
		if err := p.recordPpsEdge(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (p *PF32G2Processor) buildFrameG2Packet(frame device.G2Frame, shifted pdtime.MacroTime) (schema.Packet, bool) {
	if len(frame.G2) == 0 {
		return schema.Packet{}, false
	}
	channels := sortedG2Channels(frame.G2)
	g2i := p.config.CalcG2I

	var tauK []uint64
	if first, ok := frame.G2[channels[0]]; ok {
		tauK = tauKToUint64(first.TauK)
	}

	if g2i {
		entries := make([]schema.G2iEntry, 0, len(channels))
		for _, ch := range channels {
			res := frame.G2[ch]
			entries = append(entries, schema.G2iEntry{
				PairID: ch, Ch1: ch, Ch2: ch,
				G2:         append([]float64(nil), res.G2...),
				UtimeFrom:  uint32(res.UtimeFrom),
				UtimeUntil: uint32(res.UtimeUntil),
			})
		}
		pkt := schema.Packet{
			Header:  schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.g2Seq, TimestampNs: int64(shifted) / 1000},
			Payload: schema.G2iPayload{Meta: schema.G2Meta{DtNs: g2MetaDtNs, K: tauK}, Entries: entries},
		}
		p.g2Seq++
		return pkt, true
	}

	entries := make([]schema.G2Entry, 0, len(channels))
	for _, ch := range channels {
		res := frame.G2[ch]
		entries = append(entries, schema.G2Entry{PairID: ch, Ch1: ch, Ch2: ch, G2: append([]float64(nil), res.G2...)})
	}
	pkt := schema.Packet{
		Header:  schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.g2Seq, TimestampNs: int64(shifted) / 1000},
		Payload: schema.G2Payload{Meta: schema.G2Meta{DtNs: g2MetaDtNs, K: tauK}, Entries: entries},
	}
	p.g2Seq++
	return pkt, true
}

func (p *PF32G2Processor) buildFrameCountsPacket(frame device.G2Frame, shifted pdtime.MacroTime, framePeriodNs uint64) (schema.Packet, bool) {
	if len(frame.Counts) == 0 {
		return schema.Packet{}, false
	}
	channels := make(map[int32]uint64, len(frame.Counts))
	for ch, c := range frame.Counts {
		channels[ch] = c
	}
	pkt := schema.Packet{
		Header: schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.countSeq, TimestampNs: int64(shifted) / 1000},
		Payload: schema.CountsPayload{
			Meta:     schema.CountsMeta{IntegrationPeriodNs: framePeriodNs},
			Channels: channels,
		},
	}
	p.countSeq++
	return pkt, true
}

func (p *PF32G2Processor) buildFrameMarkersPacket(frame device.G2Frame, shifted pdtime.MacroTime) (schema.Packet, bool) {
	if frame.MarkerTimestamps == nil || len(frame.MarkerTimestamps.Macro) == 0 {
		return schema.Packet{}, false
	}
	pkt := schema.Packet{
		Header: schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.markerSeq, TimestampNs: int64(shifted) / 1000},
		Payload: schema.MarkersPayload{
			Channels: map[int32][]uint64{ppsMarkerChannel: macroToUint64(frame.MarkerTimestamps.Macro)},
		},
	}
	p.markerSeq++
	return pkt, true
}

func sortedG2Channels(m map[int32]device.G2Result) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
