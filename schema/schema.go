// Package schema defines the wire message envelope published on every
// topic: a (Header, Payload) packet, where Payload is one of a fixed set
// of tagged variants.
package schema

// Topic names produced by the core.
const (
	TopicTimestamps = "time_tags_array"
	TopicHistograms = "histograms"
	TopicMarkers    = "markers"
	TopicDtof       = "dtof"
	TopicCri        = "cri"
	TopicCounts     = "counts"
	TopicG2         = "g2"
	TopicG2i        = "g2i"
	TopicPpsStats   = "pps_stats"
	TopicEvent      = "event"
)

// Header is common to every packet.
type Header struct {
	ExperimentID   int32
	SequenceNumber int64
	TimestampNs    int64
}

// Packet is one published message.
type Packet struct {
	Header  Header
	Payload Payload
}

// Payload is implemented by every message variant; Topic names the topic
// it is published on.
type Payload interface {
	Topic() string
}

// ChannelTimestamps is one channel's raw timestamps, as carried on the wire.
type ChannelTimestamps struct {
	Macro []uint64
	Micro []uint32
}

// TimestampsPayload carries raw per-channel timestamps for one window.
type TimestampsPayload struct {
	Channels map[int32]ChannelTimestamps
}

func (TimestampsPayload) Topic() string { return TopicTimestamps }

// HistogramMeta describes the bin layout shared by every channel in a
// HistogramsPayload.
type HistogramMeta struct {
	BinSizePs   uint64
	FirstBinIdx uint64
	LastBinIdx  uint64
}

// HistogramsPayload carries raw per-channel binned timestamps.
type HistogramsPayload struct {
	Meta     HistogramMeta
	Channels map[int32][]uint32
}

func (HistogramsPayload) Topic() string { return TopicHistograms }

// MarkersPayload carries marker-channel (e.g. PPS) macrotimes.
type MarkersPayload struct {
	Channels map[int32][]uint64
}

func (MarkersPayload) Topic() string { return TopicMarkers }

// DtofMeta describes a DTOF payload's bin layout and integration period.
type DtofMeta struct {
	ResolutionPs        uint64
	RangeMinPs          uint64
	RangeMaxPs          uint64
	IntegrationPeriodNs uint64
}

// DtofPayload carries per-channel time-of-flight histograms.
type DtofPayload struct {
	Meta     DtofMeta
	Channels map[int32][]uint32
}

func (DtofPayload) Topic() string { return TopicDtof }

// CriMeta describes a CRi payload's integration period.
type CriMeta struct {
	IntegrationPeriodNs uint64
}

// CriEntry is one channel's region-of-interest count.
type CriEntry struct {
	UtimeFrom  uint32
	UtimeUntil uint32
	Count      uint64
}

// CriPayload carries per-channel region-of-interest counts.
type CriPayload struct {
	Meta     CriMeta
	Channels map[int32]CriEntry
}

func (CriPayload) Topic() string { return TopicCri }

// CountsMeta describes a counts payload's integration period.
type CountsMeta struct {
	IntegrationPeriodNs uint64
}

// CountsPayload carries per-channel count rates.
type CountsPayload struct {
	Meta     CountsMeta
	Channels map[int32]uint64
}

func (CountsPayload) Topic() string { return TopicCounts }

// G2Meta describes the lag times shared by every entry in a g2 payload.
type G2Meta struct {
	DtNs uint64
	K    []uint64
}

// G2Entry is one channel pair's correlation curve.
type G2Entry struct {
	PairID int32
	Ch1    int32
	Ch2    int32
	G2     []float64
}

// G2Payload carries one window's correlation results.
type G2Payload struct {
	Meta    G2Meta
	Entries []G2Entry
}

func (G2Payload) Topic() string { return TopicG2 }

// G2iEntry is one channel pair's intensity-gated correlation curve.
type G2iEntry struct {
	PairID     int32
	Ch1        int32
	Ch2        int32
	G2         []float64
	UtimeFrom  uint32
	UtimeUntil uint32
}

// G2iPayload carries one window's intensity-gated correlation results.
type G2iPayload struct {
	Meta    G2Meta
	Entries []G2iEntry
}

func (G2iPayload) Topic() string { return TopicG2i }

// PpsStatsPayload reports one accepted PPS pulse's disciplining stats.
type PpsStatsPayload struct {
	OffsetNs int64
	JitterNs int64
}

func (PpsStatsPayload) Topic() string { return TopicPpsStats }

// EventType distinguishes run-lifecycle events.
type EventType int32

const (
	EventStart EventType = iota
	EventStop
)

// EventPayload marks the start or stop of a run.
type EventPayload struct {
	EventType EventType
}

func (EventPayload) Topic() string { return TopicEvent }
