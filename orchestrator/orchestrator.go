// Package orchestrator drives one experiment end to end: it pulls raw
// windows from a Device, folds them into the per-channel DTOF/counter/
// correlator state, and publishes the resulting envelopes in a fixed,
// deterministic order. DeviceProcessor is the timetagger/histogrammer
// variant; PF32G2Processor is the variant for devices that compute g2 and
// intensity maps on-instrument.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/pando/archive"
	"github.com/grailbio/pando/codec"
	"github.com/grailbio/pando/correlator"
	"github.com/grailbio/pando/counter"
	"github.com/grailbio/pando/device"
	"github.com/grailbio/pando/dtof"
	"github.com/grailbio/pando/health"
	"github.com/grailbio/pando/histogram"
	"github.com/grailbio/pando/keyed"
	"github.com/grailbio/pando/pdtime"
	"github.com/grailbio/pando/publish"
	"github.com/grailbio/pando/schema"
	"github.com/grailbio/pando/timeshift"
	"github.com/grailbio/pando/worker"
)

// g2MetaDtNs is the formal unit scale g2 lag times are expressed in. Every
// tau_k value carried in G2Meta.K is already an absolute picosecond
// duration, so this is a fixed unit tag rather than a bin-size-derived
// scale factor.
const g2MetaDtNs = 1

// ExperimentType selects which per-channel computations a window's
// processing performs.
type ExperimentType int

const (
	// ExperimentNone computes only count rates.
	ExperimentNone ExperimentType = iota
	// ExperimentTD additionally computes DTOF and CRi.
	ExperimentTD
	// ExperimentDCS additionally computes g2 (or g2i).
	ExperimentDCS
	// ExperimentTDDCS computes DTOF, CRi, and g2/g2i together.
	ExperimentTDDCS
)

// ppsMarkerChannel is the marker channel carrying the PPS reference edge.
const ppsMarkerChannel = int32(0)

// ppsTimeoutNs is the maximum elapsed acquisition time to wait for a first
// PPS edge before failing the run.
const ppsTimeoutNs = uint64(20100) * 1_000_000

// Config is an experiment's acquisition and analysis configuration. Fields
// marked dynamic may be re-read once per window via a DynamicConfig
// callback; the rest are fixed for the lifetime of a Start call.
type Config struct {
	ExperimentType    ExperimentType
	EnabledChannels   []int32
	BinSizeNs         uint64
	PointsPerLevel    int
	NLevels           int
	RebinFactor       int
	UsePPS            bool
	CalcG2I           bool
	LogRawData        bool
	PublishRawData    bool
	LaserSyncPeriodPs uint64
	DtofRangeMinPs    uint64
	DtofRangeMaxPs    uint64

	// dynamic
	FinalBinCount      uint64
	DtofIntegPeriodNs  uint64
	CriIntegPeriodNs   uint64
	CountIntegPeriodNs uint64
	CriOffsetPs        map[int32]uint64
	CriWidthPs         map[int32]uint64
}

// shared holds the publish/time-discipline state common to every
// orchestrator variant: the wire publisher and serializer, the
// macrotime-to-walltime shifter, and the per-topic sequence counters that
// keep a variant's packet stream monotonic. DeviceProcessor and
// PF32G2Processor each embed one instead of duplicating this bookkeeping.
type shared struct {
	publisher    publish.Publisher
	serializer   publish.Serializer
	experimentID int32
	timeShifter  *timeshift.TimeShifter

	countSeq, dtofSeq, criSeq, markerSeq, ppsSeq, eventSeq, g2Seq int64
}

func (s *shared) publishEvent(ctx context.Context, evt schema.EventType, shifted pdtime.MacroTime) error {
	pkt := schema.Packet{
		Header:  schema.Header{ExperimentID: s.experimentID, SequenceNumber: s.eventSeq, TimestampNs: int64(shifted) / 1000},
		Payload: schema.EventPayload{EventType: evt},
	}
	s.eventSeq++
	return s.publishPacket(ctx, pkt)
}

func (s *shared) publishPacket(ctx context.Context, pkt schema.Packet) error {
	data, err := s.serializer.Marshal(pkt)
	if err != nil {
		return errors.E(err, fmt.Sprintf("orchestrator: serializing %s packet", pkt.Payload.Topic()))
	}
	if err := s.publisher.Publish(ctx, pkt.Payload.Topic(), data); err != nil {
		return errors.E(err, fmt.Sprintf("orchestrator: publishing %s packet", pkt.Payload.Topic()))
	}
	return nil
}

// recordPpsEdge disciplines the shifter against one PPS pulse and, unless
// the pulse was rejected for falling inside the holdoff window, publishes
// the resulting pps_stats packet. Both DeviceProcessor and PF32G2Processor
// drive this from their own marker-scanning loop, since where markers live
// (host-built RawData vs. a device-native frame) differs between them.
func (s *shared) recordPpsEdge(ctx context.Context, t pdtime.MacroTime) error {
	stats, rejected, err := s.timeShifter.Adjust(t)
	if err != nil {
		return errors.E(err, "orchestrator: disciplining PPS edge")
	}
	if rejected {
		return nil
	}
	shifted := s.timeShifter.Shift(t)
	pkt := schema.Packet{
		Header:  schema.Header{ExperimentID: s.experimentID, SequenceNumber: s.ppsSeq, TimestampNs: int64(shifted) / 1000},
		Payload: schema.PpsStatsPayload{OffsetNs: int64(stats.Offset) / 1000, JitterNs: int64(stats.Jitter) / 1000},
	}
	s.ppsSeq++
	return s.publishPacket(ctx, pkt)
}

// DeviceProcessor runs the timetagger/histogrammer orchestrator life cycle
// (Idle -> Starting -> Running -> Stopping -> Idle) against an injected
// Device, Publisher, and optional Archiver.
type DeviceProcessor struct {
	shared

	dev      device.Device
	archiver archive.Archiver
	monitor  *health.Monitor

	config        Config
	dynamicConfig func() Config
	session       device.Session

	correlators  *keyed.Container
	dtofs        *keyed.Container
	tsCounters   *keyed.Container
	histCounters *keyed.Container
	criCounters  *keyed.Container

	rawLogWorker, rawPbWorker, publishWorker *worker.Worker

	stop   chan struct{}
	done   chan struct{}
	runErr error
}

// NewDeviceProcessor constructs a processor. serializer defaults to
// codec.GogoSerializer{} if nil.
func NewDeviceProcessor(dev device.Device, publisher publish.Publisher, serializer publish.Serializer, archiver archive.Archiver, monitor *health.Monitor) *DeviceProcessor {
	if serializer == nil {
		serializer = codec.GogoSerializer{}
	}
	return &DeviceProcessor{
		shared:   shared{publisher: publisher, serializer: serializer},
		dev:      dev,
		archiver: archiver,
		monitor:  monitor,
	}
}

// Start starts the device, blocks for the device rendezvous, constructs the
// per-channel correlators, and spawns the Run loop in the background. Start
// does not wait for a PPS edge or emit the START event: PPS priming (if
// configured), construction of the DTOF and counter state, and the START
// event all happen inside the background loop, and a failure there
// (including the 20s PPS timeout) is reported through Done and Err rather
// than by Start's return value. dynamicConfig, if non-nil, is polled once per
// window for the fields Config documents as dynamic; a nil dynamicConfig
// holds the dynamic fields fixed at their Start-time values.
func (p *DeviceProcessor) Start(ctx context.Context, experimentID int32, cfg Config, dynamicConfig func() Config) error {
	p.experimentID = experimentID
	p.config = cfg
	p.dynamicConfig = dynamicConfig
	p.g2Seq, p.eventSeq = 0, 0

	sess, err := p.dev.Start(ctx, device.Config{
		BinSizeNs:         cfg.BinSizeNs,
		EnabledChannels:   cfg.EnabledChannels,
		LaserSyncPeriodPs: cfg.LaserSyncPeriodPs,
	})
	if err != nil {
		return errors.E(err, "orchestrator: starting device")
	}
	p.session = sess

	dummy := device.NewRawData(device.Config{BinSizeNs: cfg.BinSizeNs, EnabledChannels: cfg.EnabledChannels})
	if err := p.dev.UpdateRawData(ctx, 0, 0, dummy); err != nil {
		return errors.E(err, "orchestrator: device rendezvous")
	}

	var ctorErr error
	p.correlators = keyed.New(cfg.EnabledChannels, func(int32) interface{} {
		c, cerr := correlator.New(pdtime.MacroTime(cfg.BinSizeNs)*1000, cfg.PointsPerLevel, cfg.NLevels, cfg.RebinFactor)
		if cerr != nil {
			ctorErr = cerr
		}
		return c
	})
	if ctorErr != nil {
		return errors.E(ctorErr, "orchestrator: constructing correlators")
	}

	holdoff := timeshift.Duration(0)
	p.timeShifter = timeshift.New(holdoff)
	p.countSeq, p.dtofSeq, p.criSeq, p.markerSeq, p.ppsSeq = 0, 0, 0, 0, 0

	p.rawLogWorker = worker.New("orchestrator-raw-log")
	p.rawPbWorker = worker.New("orchestrator-raw-pb")
	p.publishWorker = worker.New("orchestrator-publish")

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
	return nil
}

// Stop signals the Run loop to finish after its current window, waits for
// it to drain, and closes the archive if one was opened.
func (p *DeviceProcessor) Stop(ctx context.Context) error {
	close(p.stop)
	<-p.done

	p.rawLogWorker.Stop()
	p.rawPbWorker.Stop()
	p.publishWorker.Stop()

	if p.session != nil {
		if err := p.session.Stop(); err != nil {
			return errors.E(err, "orchestrator: stopping device session")
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
func (p *DeviceProcessor) Done() <-chan struct{} { return p.done }

// Err returns the Run loop's terminal error, if any. Only meaningful after
// Done is closed.
func (p *DeviceProcessor) Err() error { return p.runErr }

func (p *DeviceProcessor) fail(err error) error {
	p.runErr = err
	if p.monitor != nil {
		p.monitor.ReportFatal(err)
	}
	close(p.done)
	return err
}

func (p *DeviceProcessor) run(ctx context.Context) {
	cfg := p.config

	binScale := uint64(1)
	for i := 1; i < cfg.NLevels; i++ {
		binScale *= uint64(cfg.RebinFactor)
	}

	deviceCfg := device.Config{BinSizeNs: cfg.BinSizeNs, EnabledChannels: cfg.EnabledChannels, LaserSyncPeriodPs: cfg.LaserSyncPeriodPs}
	rawA := device.NewRawData(deviceCfg)
	rawB := device.NewRawData(deviceCfg)

	var beginBinIdx, endBinIdx uint64

	if cfg.UsePPS {
		for !p.timeShifter.IsPrimed() {
			if cfg.BinSizeNs*beginBinIdx >= ppsTimeoutNs {
				p.fail(errors.E("orchestrator: waited more than 20s for first PPS pulse; is a PPS signal connected to marker channel 0?"))
				return
			}
			beginBinIdx = endBinIdx
			endBinIdx += cfg.FinalBinCount * binScale
			if err := p.dev.UpdateRawData(ctx, beginBinIdx, endBinIdx, rawA); err != nil {
				p.fail(errors.E(err, "orchestrator: updating raw data while priming PPS"))
				return
			}
			if err := p.handlePps(ctx, rawA); err != nil {
				p.fail(err)
				return
			}
		}
	}

	resolution := pdtime.MicroTime(p.dev.MicrotimeResolutionPs())
	rangeStart := pdtime.MicroTime(cfg.DtofRangeMinPs)
	var rangeEnd pdtime.MicroTime
	if cfg.LaserSyncPeriodPs >= cfg.DtofRangeMaxPs {
		rangeEnd = pdtime.MicroTime(cfg.DtofRangeMaxPs)
	} else {
		log.Error.Printf("orchestrator: dtof range max (%dps) exceeds laser sync period (%dps); truncating to the sync period", cfg.DtofRangeMaxPs, cfg.LaserSyncPeriodPs)
		rangeEnd = pdtime.MicroTime(cfg.LaserSyncPeriodPs)
	}

	firstIntegStart := pdtime.MacroTime(cfg.BinSizeNs) * 1000 * pdtime.MacroTime(beginBinIdx)

	var dtofErr error
	p.dtofs = keyed.New(cfg.EnabledChannels, func(int32) interface{} {
		acc, aerr := dtof.New(resolution, resolution, rangeStart, rangeEnd, firstIntegStart)
		if aerr != nil {
			dtofErr = aerr
		}
		return acc
	})
	if dtofErr != nil {
		p.fail(errors.E(dtofErr, "orchestrator: constructing dtof accumulators"))
		return
	}
	p.tsCounters = keyed.New(cfg.EnabledChannels, func(int32) interface{} { return counter.NewTimestampCounter(firstIntegStart) })
	p.histCounters = keyed.New(cfg.EnabledChannels, func(int32) interface{} { return counter.NewHistogramCounter(firstIntegStart) })
	p.criCounters = keyed.New(cfg.EnabledChannels, func(int32) interface{} { return counter.NewROICounter(firstIntegStart) })

	if err := p.publishEvent(ctx, schema.EventStart, p.timeShifter.Shift(firstIntegStart)); err != nil {
		p.fail(err)
		return
	}

	if cfg.UsePPS {
		if err := p.processWindow(ctx, rawA, p.effectiveConfig(), beginBinIdx, endBinIdx); err != nil {
			p.fail(err)
			return
		}
	}

	procWorker := worker.New("orchestrator-process")
	var pending *worker.Future

loop:
	for {
		select {
		case <-p.stop:
			break loop
		default:
		}

		dynCfg := p.effectiveConfig()

		beginBinIdx = endBinIdx
		endBinIdx += dynCfg.FinalBinCount * binScale

		if err := p.dev.UpdateRawData(ctx, beginBinIdx, endBinIdx, rawA); err != nil {
			p.fail(errors.E(err, "orchestrator: updating raw data"))
			procWorker.Stop()
			return
		}

		if pending != nil {
			if _, perr := pending.Wait(); perr != nil {
				p.fail(perr)
				procWorker.Stop()
				return
			}
		}

		rawA, rawB = rawB, rawA
		procBuf := rawB
		procCfg := dynCfg
		procBegin, procEnd := beginBinIdx, endBinIdx
		pending, _ = procWorker.Async(func() (interface{}, error) {
			if cfg.UsePPS {
				if err := p.handlePps(ctx, procBuf); err != nil {
					return nil, err
				}
			}
			return nil, p.processWindow(ctx, procBuf, procCfg, procBegin, procEnd)
		})
	}

	if pending != nil {
		if _, perr := pending.Wait(); perr != nil {
			p.fail(perr)
			procWorker.Stop()
			return
		}
	}
	procWorker.Stop()

	lastEndTime := pdtime.MacroTime(cfg.BinSizeNs) * 1000 * pdtime.MacroTime(endBinIdx)
	if err := p.publishEvent(ctx, schema.EventStop, p.timeShifter.Shift(lastEndTime)); err != nil {
		p.fail(err)
		return
	}
	close(p.done)
}

// effectiveConfig returns the dynamic view of the configuration for the
// next window: structural fields come from the Start-time config, the
// fields Config documents as dynamic come from dynamicConfig if supplied.
func (p *DeviceProcessor) effectiveConfig() Config {
	if p.dynamicConfig == nil {
		return p.config
	}
	dyn := p.dynamicConfig()
	cfg := p.config
	cfg.FinalBinCount = dyn.FinalBinCount
	cfg.DtofIntegPeriodNs = dyn.DtofIntegPeriodNs
	cfg.CriIntegPeriodNs = dyn.CriIntegPeriodNs
	cfg.CountIntegPeriodNs = dyn.CountIntegPeriodNs
	cfg.CriOffsetPs = dyn.CriOffsetPs
	cfg.CriWidthPs = dyn.CriWidthPs
	return cfg
}

func (p *DeviceProcessor) handlePps(ctx context.Context, raw *device.RawData) error {
	v, ok := raw.MarkerTimestamps.Get(ppsMarkerChannel)
	if !ok {
		return errors.E(fmt.Sprintf("orchestrator: no marker channel %d for PPS", ppsMarkerChannel))
	}
	markers := v.(*pdtime.ChannelTimestamps)
	for _, t := range markers.Macro {
		if err := p.recordPpsEdge(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// processWindow runs one window's per-channel processing, builds the
// resulting envelopes in the fixed topic order, and dispatches their
// serialization and publication on the publish worker so concurrently
// processed windows cannot reorder the wire stream.
func (p *DeviceProcessor) processWindow(ctx context.Context, raw *device.RawData, cfg Config, beginBinIdx, endBinIdx uint64) error {
	firstBinTimestamp := p.timeShifter.Shift(pdtime.MacroTime(p.config.BinSizeNs)*1000*pdtime.MacroTime(beginBinIdx))

	var rawLogFuture *worker.Future
	if p.archiver != nil && p.config.LogRawData {
		var err error
		rawLogFuture, err = p.rawLogWorker.Async(func() (interface{}, error) {
			return nil, p.archiveRawData(ctx, raw, beginBinIdx)
		})
		if err != nil {
			return err
		}
	}

	var rawPbFuture *worker.Future
	if p.config.PublishRawData {
		var err error
		rawPbFuture, err = p.rawPbWorker.Async(func() (interface{}, error) {
			return p.buildRawPackets(raw, firstBinTimestamp)
		})
		if err != nil {
			return err
		}
	}

	channels := raw.Timestamps.Keys()

	calcDtofAndCri := p.dev.GeneratesMicrotimes() && (p.config.ExperimentType == ExperimentTD || p.config.ExperimentType == ExperimentTDDCS)
	calcCrFromTimestamps := p.dev.DeviceKind() == device.TimeTagger
	calcCrFromHistograms := p.dev.DeviceKind() == device.Histogrammer
	calcG2 := p.config.ExperimentType == ExperimentDCS || p.config.ExperimentType == ExperimentTDDCS
	calcHistFromTimestamps := calcG2 && p.dev.DeviceKind() == device.TimeTagger
	g2IsG2i := calcHistFromTimestamps && p.dev.GeneratesMicrotimes() && p.config.CalcG2I && p.config.ExperimentType == ExperimentTDDCS

	errs := multierror.NewMultiError(1)
	var failCount int64
	_ = traverse.Each(len(channels), func(i int) error {
		ch := channels[i]
		err := p.processChannel(cfg, ch, beginBinIdx, endBinIdx, raw, calcDtofAndCri, calcCrFromTimestamps, calcCrFromHistograms, calcG2, calcHistFromTimestamps, g2IsG2i)
		if err != nil {
			atomic.AddInt64(&failCount, 1)
			errs.Add(err)
			return err
		}
		return nil
	})
	if err := errs.ErrorOrNil(); err != nil {
		log.Error.Printf("orchestrator: %d channel(s) failed during window processing, rethrowing one", atomic.LoadInt64(&failCount))
		return err
	}

	var markerPackets []schema.Packet
	var rawPackets []schema.Packet
	if rawPbFuture != nil {
		res, err := rawPbFuture.Wait()
		if err != nil {
			return err
		}
		rawPackets = res.([]schema.Packet)
	}
	for _, pkt := range rawPackets {
		if pkt.Payload.Topic() == schema.TopicMarkers {
			markerPackets = append(markerPackets, pkt)
			continue
		}
		pkt.Header.SequenceNumber = p.g2Seq
		if err := p.dispatchPublish(ctx, pkt); err != nil {
			return err
		}
	}
	for _, pkt := range markerPackets {
		pkt.Header.SequenceNumber = p.markerSeq
		p.markerSeq++
		if err := p.dispatchPublish(ctx, pkt); err != nil {
			return err
		}
	}

	if calcDtofAndCri {
		if pkt, ok := p.buildDtofPacket(); ok {
			if err := p.dispatchPublish(ctx, pkt); err != nil {
				return err
			}
		}
		if pkt, ok := p.buildCriPacket(); ok {
			if err := p.dispatchPublish(ctx, pkt); err != nil {
				return err
			}
		}
	}
	if calcCrFromTimestamps {
		if pkt, ok := p.buildCountsPacket(p.tsCounters); ok {
			if err := p.dispatchPublish(ctx, pkt); err != nil {
				return err
			}
		}
	} else if calcCrFromHistograms {
		if pkt, ok := p.buildCountsPacket(p.histCounters); ok {
			if err := p.dispatchPublish(ctx, pkt); err != nil {
				return err
			}
		}
	}
	if calcG2 {
		if g2IsG2i {
			if pkt, ok := p.buildG2iPacket(cfg); ok {
				if err := p.dispatchPublish(ctx, pkt); err != nil {
					return err
				}
			}
		} else {
			if pkt, ok := p.buildG2Packet(); ok {
				if err := p.dispatchPublish(ctx, pkt); err != nil {
					return err
				}
			}
		}
	}

	p.g2Seq++

	if rawLogFuture != nil {
		if _, err := rawLogFuture.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// dispatchPublish hands pkt's serialization and publication to the publish
// worker; the worker's FIFO queue preserves window and within-window order
// even though multiple windows' serialization can be in flight at once.
func (p *DeviceProcessor) dispatchPublish(ctx context.Context, pkt schema.Packet) error {
	_, err := p.publishWorker.Async(func() (interface{}, error) {
		return nil, p.publishPacket(ctx, pkt)
	})
	return err
}

func (p *DeviceProcessor) processChannel(
	cfg Config, ch int32, beginBinIdx, endBinIdx uint64, raw *device.RawData,
	calcDtofAndCri, calcCrFromTimestamps, calcCrFromHistograms, calcG2, calcHistFromTimestamps, g2IsG2i bool,
) error {
	tsV, _ := raw.Timestamps.Get(ch)
	ts := tsV.(*pdtime.ChannelTimestamps)

	histV, _ := raw.Histograms.Get(ch)
	hist := histV.(*histogram.Histogram)

	corrV, _ := p.correlators.Get(ch)
	corr := corrV.(*correlator.Correlator)

	tsCounterV, _ := p.tsCounters.Get(ch)
	tsCounter := tsCounterV.(*counter.TimestampCounter)

	histCounterV, _ := p.histCounters.Get(ch)
	histCounter := histCounterV.(*counter.HistogramCounter)

	criCounterV, _ := p.criCounters.Get(ch)
	criCounter := criCounterV.(*counter.ROICounter)

	dtofV, _ := p.dtofs.Get(ch)
	dtofAcc := dtofV.(*dtof.Accumulator)

	var criFrom, criUntil pdtime.MicroTime
	if calcDtofAndCri {
		dtofPeriod := pdtime.MacroTime(cfg.DtofIntegPeriodNs) * 1000
		if err := dtofAcc.Generate(ts, dtofPeriod); err != nil {
			return err
		}

		criPeriod := pdtime.MacroTime(cfg.CriIntegPeriodNs) * 1000
		if off, ok := cfg.CriOffsetPs[ch]; ok {
			criFrom = pdtime.MicroTime(off)
		}
		if width, ok := cfg.CriWidthPs[ch]; ok {
			criUntil = criFrom + pdtime.MicroTime(width)
		}
		if err := criCounter.CountROI(ts, criPeriod, criFrom, criUntil); err != nil {
			return err
		}
	}

	countsPeriod := pdtime.MacroTime(cfg.CountIntegPeriodNs) * 1000
	switch {
	case calcCrFromTimestamps:
		if err := tsCounter.CountTimestamps(ts, countsPeriod); err != nil {
			return err
		}
	case calcCrFromHistograms:
		if err := histCounter.CountHistogram(hist, countsPeriod); err != nil {
			return err
		}
	}

	if calcG2 {
		if calcHistFromTimestamps {
			if g2IsG2i {
				downsampled := downsampleMacroTimes(ts, criFrom, criUntil)
				if err := hist.BinMacroTimes(downsampled, beginBinIdx, endBinIdx); err != nil {
					return err
				}
			} else {
				if err := hist.BinMacroTimes(ts.Macro, beginBinIdx, endBinIdx); err != nil {
					return err
				}
			}
		}
		if _, err := corr.UpdateG2(hist); err != nil {
			return err
		}
	}
	return nil
}

func downsampleMacroTimes(ts *pdtime.ChannelTimestamps, from, until pdtime.MicroTime) []pdtime.MacroTime {
	downsampled := make([]pdtime.MacroTime, 0, len(ts.Macro))
	for i, micro := range ts.Micro {
		if micro >= from && micro <= until {
			downsampled = append(downsampled, ts.Macro[i])
		}
	}
	return downsampled
}

// buildRawPackets assembles the raw-envelope packets for one window: a
// timestamps-or-histograms packet (device-kind dependent) and, only if at
// least one channel carries marker edges, a markers packet.
func (p *DeviceProcessor) buildRawPackets(raw *device.RawData, firstBinTimestamp pdtime.MacroTime) ([]schema.Packet, error) {
	timestampNs := int64(firstBinTimestamp) / 1000
	header := schema.Header{ExperimentID: p.experimentID, TimestampNs: timestampNs}

	var pkts []schema.Packet
	switch p.dev.DeviceKind() {
	case device.TimeTagger:
		channels := make(map[int32]schema.ChannelTimestamps, raw.Timestamps.Len())
		raw.Timestamps.Each(func(ch int32, v interface{}) {
			ct := v.(*pdtime.ChannelTimestamps)
			channels[ch] = schema.ChannelTimestamps{Macro: macroToUint64(ct.Macro), Micro: microToUint32(ct.Micro)}
		})
		pkts = append(pkts, schema.Packet{Header: header, Payload: schema.TimestampsPayload{Channels: channels}})
	case device.Histogrammer:
		channels := make(map[int32][]uint32, raw.Histograms.Len())
		var meta schema.HistogramMeta
		raw.Histograms.Each(func(ch int32, v interface{}) {
			h := v.(*histogram.Histogram)
			channels[ch] = append([]uint32(nil), h.Counts...)
			meta = schema.HistogramMeta{BinSizePs: uint64(h.BinWidth), FirstBinIdx: h.BeginBinIdx, LastBinIdx: h.EndBinIdx}
		})
		pkts = append(pkts, schema.Packet{Header: header, Payload: schema.HistogramsPayload{Meta: meta, Channels: channels}})
	}

	markersPresent := false
	markerChannels := make(map[int32][]uint64, raw.MarkerTimestamps.Len())
	raw.MarkerTimestamps.Each(func(ch int32, v interface{}) {
		ct := v.(*pdtime.ChannelTimestamps)
		if len(ct.Macro) == 0 {
			return
		}
		markersPresent = true
		markerChannels[ch] = macroToUint64(ct.Macro)
	})
	if markersPresent {
		pkts = append(pkts, schema.Packet{Header: header, Payload: schema.MarkersPayload{Channels: markerChannels}})
	}
	return pkts, nil
}

// archiveRawData persists one window's raw envelopes to the session
// archive, keyed by the window's starting bin index so records remain in
// acquisition order.
func (p *DeviceProcessor) archiveRawData(ctx context.Context, raw *device.RawData, beginBinIdx uint64) error {
	firstBinTimestamp := pdtime.MacroTime(p.config.BinSizeNs) * 1000 * pdtime.MacroTime(beginBinIdx)
	pkts, err := p.buildRawPackets(raw, firstBinTimestamp)
	if err != nil {
		return err
	}
	for _, pkt := range pkts {
		data, err := p.serializer.Marshal(pkt)
		if err != nil {
			return errors.E(err, fmt.Sprintf("orchestrator: serializing raw %s record", pkt.Payload.Topic()))
		}
		if err := p.archiver.Append(ctx, pkt.Payload.Topic(), int64(beginBinIdx), data); err != nil {
			return errors.E(err, fmt.Sprintf("orchestrator: archiving raw %s record", pkt.Payload.Topic()))
		}
	}
	return nil
}

func macroToUint64(ts []pdtime.MacroTime) []uint64 {
	out := make([]uint64, len(ts))
	for i, t := range ts {
		out[i] = uint64(t)
	}
	return out
}

func microToUint32(ts []pdtime.MicroTime) []uint32 {
	out := make([]uint32, len(ts))
	for i, t := range ts {
		out[i] = uint32(t)
	}
	return out
}

func (p *DeviceProcessor) buildDtofPacket() (schema.Packet, bool) {
	if p.dtofs.Len() == 0 {
		return schema.Packet{}, false
	}
	_, firstV := p.dtofs.At(0)
	first := firstV.(*dtof.Accumulator)
	if !first.PeriodComplete() {
		return schema.Packet{}, false
	}

	channels := make(map[int32][]uint32, p.dtofs.Len())
	p.dtofs.Each(func(ch int32, v interface{}) {
		acc := v.(*dtof.Accumulator)
		channels[ch] = append([]uint32(nil), acc.Counts()...)
	})

	pkt := schema.Packet{
		Header: schema.Header{
			ExperimentID:   p.experimentID,
			SequenceNumber: p.dtofSeq,
			TimestampNs:    int64(p.timeShifter.Shift(first.PeriodStart())) / 1000,
		},
		Payload: schema.DtofPayload{
			Meta: schema.DtofMeta{
				ResolutionPs:        uint64(first.DataResolution),
				RangeMinPs:          uint64(first.RangeMin),
				RangeMaxPs:          uint64(first.RangeMax),
				IntegrationPeriodNs: uint64(first.Period()) / 1000,
			},
			Channels: channels,
		},
	}
	p.dtofSeq++
	return pkt, true
}

func (p *DeviceProcessor) buildCriPacket() (schema.Packet, bool) {
	if p.criCounters.Len() == 0 {
		return schema.Packet{}, false
	}
	_, firstV := p.criCounters.At(0)
	first := firstV.(*counter.ROICounter)
	if !first.PeriodComplete() {
		return schema.Packet{}, false
	}

	channels := make(map[int32]schema.CriEntry, p.criCounters.Len())
	p.criCounters.Each(func(ch int32, v interface{}) {
		c := v.(*counter.ROICounter)
		from, until := c.ROI()
		channels[ch] = schema.CriEntry{UtimeFrom: uint32(from), UtimeUntil: uint32(until), Count: c.Count()}
	})

	pkt := schema.Packet{
		Header: schema.Header{
			ExperimentID:   p.experimentID,
			SequenceNumber: p.criSeq,
			TimestampNs:    int64(p.timeShifter.Shift(first.PeriodStart())) / 1000,
		},
		Payload: schema.CriPayload{
			Meta:     schema.CriMeta{IntegrationPeriodNs: uint64(first.Period()) / 1000},
			Channels: channels,
		},
	}
	p.criSeq++
	return pkt, true
}

// countCompleter is satisfied by TimestampCounter and HistogramCounter,
// which share an identical read-only surface for building a counts packet.
type countCompleter interface {
	Count() uint64
	PeriodComplete() bool
	PeriodStart() pdtime.MacroTime
	Period() pdtime.MacroTime
}

func (p *DeviceProcessor) buildCountsPacket(counters *keyed.Container) (schema.Packet, bool) {
	if counters.Len() == 0 {
		return schema.Packet{}, false
	}
	_, firstV := counters.At(0)
	first := firstV.(countCompleter)
	if !first.PeriodComplete() {
		return schema.Packet{}, false
	}

	channels := make(map[int32]uint64, counters.Len())
	counters.Each(func(ch int32, v interface{}) {
		channels[ch] = v.(countCompleter).Count()
	})

	pkt := schema.Packet{
		Header: schema.Header{
			ExperimentID:   p.experimentID,
			SequenceNumber: p.countSeq,
			TimestampNs:    int64(p.timeShifter.Shift(first.PeriodStart())) / 1000,
		},
		Payload: schema.CountsPayload{
			Meta:     schema.CountsMeta{IntegrationPeriodNs: uint64(first.Period()) / 1000},
			Channels: channels,
		},
	}
	p.countSeq++
	return pkt, true
}

func (p *DeviceProcessor) buildG2Packet() (schema.Packet, bool) {
	if p.correlators.Len() == 0 {
		return schema.Packet{}, false
	}
	_, firstV := p.correlators.At(0)
	first := firstV.(*correlator.Correlator).GetResult()

	entries := make([]schema.G2Entry, 0, p.correlators.Len())
	p.correlators.Each(func(ch int32, v interface{}) {
		res := v.(*correlator.Correlator).GetResult()
		entries = append(entries, schema.G2Entry{PairID: ch, Ch1: ch, Ch2: ch, G2: append([]float64(nil), res.G2...)})
	})

	pkt := schema.Packet{
		Header: schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.g2Seq},
		Payload: schema.G2Payload{
			Meta:    schema.G2Meta{DtNs: g2MetaDtNs, K: tauKToUint64(first.TauK)},
			Entries: entries,
		},
	}
	return pkt, true
}

func (p *DeviceProcessor) buildG2iPacket(cfg Config) (schema.Packet, bool) {
	if p.correlators.Len() == 0 {
		return schema.Packet{}, false
	}
	_, firstV := p.correlators.At(0)
	first := firstV.(*correlator.Correlator).GetResult()

	entries := make([]schema.G2iEntry, 0, p.correlators.Len())
	p.correlators.Each(func(ch int32, v interface{}) {
		res := v.(*correlator.Correlator).GetResult()
		var from, until pdtime.MicroTime
		if off, ok := cfg.CriOffsetPs[ch]; ok {
			from = pdtime.MicroTime(off)
		}
		if width, ok := cfg.CriWidthPs[ch]; ok {
			until = from + pdtime.MicroTime(width)
		}
		entries = append(entries, schema.G2iEntry{
			PairID: ch, Ch1: ch, Ch2: ch,
			G2:         append([]float64(nil), res.G2...),
			UtimeFrom:  uint32(from),
			UtimeUntil: uint32(until),
		})
	})

	pkt := schema.Packet{
		Header: schema.Header{ExperimentID: p.experimentID, SequenceNumber: p.g2Seq},
		Payload: schema.G2iPayload{
			Meta:    schema.G2Meta{DtNs: g2MetaDtNs, K: tauKToUint64(first.TauK)},
			Entries: entries,
		},
	}
	return pkt, true
}

func tauKToUint64(tauK []pdtime.MacroTime) []uint64 {
	k := make([]uint64, len(tauK))
	for i, t := range tauK {
		k[i] = uint64(t)
	}
	return k
}
