package main

/*
pando-core is a thin CLI that wires a mock Device (or G2Device), a
Publisher, and an optional Archiver into an orchestrator. It loads its
experiment parameters from a TOML file and runs one experiment to
completion against synthetic data. It does not implement session/
control-plane semantics -- there is no way to reconfigure a running
experiment or to run more than one at a time -- that scope lives in
whatever deployment wires pando-core's pieces together for real.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/pando/archive"
	"github.com/grailbio/pando/device"
	"github.com/grailbio/pando/health"
	"github.com/grailbio/pando/orchestrator"
	"github.com/grailbio/pando/publish"
)

var (
	configPath   = flag.String("config", "", "path to a TOML experiment config file (required)")
	archivePath  = flag.String("archive", "", "path to write the raw-data archive to; empty disables archiving")
	experimentID = flag.Int("experiment_id", 0, "experiment ID stamped on every published packet")
	seedWindows  = flag.Int("seed_windows", 20, "number of synthetic empty windows/frames to feed the mock device before it reports exhaustion")
)

// fileConfig is the TOML-decoded shape of -config. It covers
// orchestrator.Config's fixed and dynamic fields except the per-channel
// CriOffsetPs and CriWidthPs maps, which are left unset, plus the one knob
// the orchestrator itself does not own: which device variant to run against.
type fileConfig struct {
	Variant            string  `toml:"variant"` // "timetagger", "histogrammer", or "pf32_g2"
	ExperimentType     string  `toml:"experiment_type"` // "none", "td", "dcs", or "tddcs"
	EnabledChannels    []int64 `toml:"enabled_channels"`
	BinSizeNs          uint64  `toml:"bin_size_ns"`
	PointsPerLevel     int     `toml:"points_per_level"`
	NLevels            int     `toml:"n_levels"`
	RebinFactor        int     `toml:"rebin_factor"`
	UsePPS             bool    `toml:"use_pps"`
	CalcG2I            bool    `toml:"calc_g2i"`
	LogRawData         bool    `toml:"log_raw_data"`
	PublishRawData     bool    `toml:"publish_raw_data"`
	LaserSyncPeriodPs  uint64  `toml:"laser_sync_period_ps"`
	DtofRangeMinPs     uint64  `toml:"dtof_range_min_ps"`
	DtofRangeMaxPs     uint64  `toml:"dtof_range_max_ps"`
	FinalBinCount      uint64  `toml:"final_bin_count"`
	DtofIntegPeriodNs  uint64  `toml:"dtof_integ_period_ns"`
	CriIntegPeriodNs   uint64  `toml:"cri_integ_period_ns"`
	CountIntegPeriodNs uint64  `toml:"count_integ_period_ns"`
}

func (fc fileConfig) toOrchestratorConfig() orchestrator.Config {
	channels := make([]int32, len(fc.EnabledChannels))
	for i, c := range fc.EnabledChannels {
		channels[i] = int32(c)
	}
	return orchestrator.Config{
		ExperimentType:     parseExperimentType(fc.ExperimentType),
		EnabledChannels:    channels,
		BinSizeNs:          fc.BinSizeNs,
		PointsPerLevel:     fc.PointsPerLevel,
		NLevels:            fc.NLevels,
		RebinFactor:        fc.RebinFactor,
		UsePPS:             fc.UsePPS,
		CalcG2I:            fc.CalcG2I,
		LogRawData:         fc.LogRawData,
		PublishRawData:     fc.PublishRawData,
		LaserSyncPeriodPs:  fc.LaserSyncPeriodPs,
		DtofRangeMinPs:     fc.DtofRangeMinPs,
		DtofRangeMaxPs:     fc.DtofRangeMaxPs,
		FinalBinCount:      fc.FinalBinCount,
		DtofIntegPeriodNs:  fc.DtofIntegPeriodNs,
		CriIntegPeriodNs:   fc.CriIntegPeriodNs,
		CountIntegPeriodNs: fc.CountIntegPeriodNs,
	}
}

func parseExperimentType(s string) orchestrator.ExperimentType {
	switch s {
	case "td":
		return orchestrator.ExperimentTD
	case "dcs":
		return orchestrator.ExperimentDCS
	case "tddcs":
		return orchestrator.ExperimentTDDCS
	default:
		return orchestrator.ExperimentNone
	}
}

func pandoCoreUsage() {
	fmt.Printf("Usage: %s -config=FILE [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = pandoCoreUsage
	shutdown := grail.Init()
	defer shutdown()

	if *configPath == "" {
		log.Fatalf("missing required -config flag")
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(*configPath, &fc); err != nil {
		log.Fatalf("decoding %s: %v", *configPath, err)
	}
	cfg := fc.toOrchestratorConfig()

	ctx := vcontext.Background()
	monitor := health.NewMonitor()

	var publisher publish.Publisher = publish.LogPublisher{}
	var archiver archive.Archiver
	if *archivePath != "" {
		a, err := archive.OpenExclusive(ctx, *archivePath)
		if err != nil {
			log.Panicf("%v", err)
		}
		archiver = a
	}

	if fc.Variant == "pf32_g2" {
		dev := device.NewMockG2Device(fc.BinSizeNs)
		seedG2Frames(dev, cfg.EnabledChannels, *seedWindows)
		proc := orchestrator.NewPF32G2Processor(dev, publisher, nil, archiver, monitor)
		if err := proc.Start(ctx, int32(*experimentID), cfg); err != nil {
			log.Panicf("%v", err)
		}
		<-proc.Done()
		if err := proc.Err(); err != nil {
			log.Panicf("%v", err)
		}
	} else {
		kind := device.TimeTagger
		if fc.Variant == "histogrammer" {
			kind = device.Histogrammer
		}
		dev := device.NewMockDevice(kind, kind == device.TimeTagger, 1)
		seedWindowsOf(dev, cfg.EnabledChannels, *seedWindows)
		proc := orchestrator.NewDeviceProcessor(dev, publisher, nil, archiver, monitor)
		if err := proc.Start(ctx, int32(*experimentID), cfg, nil); err != nil {
			log.Panicf("%v", err)
		}
		<-proc.Done()
		if err := proc.Err(); err != nil {
			log.Panicf("%v", err)
		}
	}

	log.Debug.Printf("exiting")
}

// seedWindowsOf enqueues n empty windows per channel for a MockDevice.
// DeviceProcessor.Start's rendezvous call consumes the first of them, so
// the run loop fetches the remaining n-1 before the device reports
// ErrProcessingTooSlow, standing in for the device falling silent at the
// end of an acquisition.
func seedWindowsOf(dev *device.MockDevice, channels []int32, n int) {
	for _, ch := range channels {
		for i := 0; i < n; i++ {
			dev.Enqueue(ch, device.MockSequence{})
		}
	}
}

// seedG2Frames enqueues n empty, zero-count frames so a MockG2Device can
// drive a PF32G2Processor run through n iterations before reporting
// ErrProcessingTooSlow.
func seedG2Frames(dev *device.MockG2Device, channels []int32, n int) {
	for i := 0; i < n; i++ {
		counts := make(map[int32]uint64, len(channels))
		g2 := make(map[int32]device.G2Result, len(channels))
		for _, ch := range channels {
			counts[ch] = 0
			g2[ch] = device.G2Result{}
		}
		dev.Enqueue(device.G2Frame{BeginFrameIdx: uint64(i), Counts: counts, G2: g2})
	}
}
