package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/pando/schema"
)

func roundTrip(t *testing.T, pkt schema.Packet) schema.Packet {
	t.Helper()
	var s GogoSerializer
	data, err := s.Marshal(pkt)
	require.NoError(t, err)
	out, err := s.Unmarshal(data)
	require.NoError(t, err)
	return out
}

func header() schema.Header {
	return schema.Header{ExperimentID: 7, SequenceNumber: 42, TimestampNs: -13}
}

func TestRoundTripTimestamps(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.TimestampsPayload{
			Channels: map[int32]schema.ChannelTimestamps{
				2: {Macro: []uint64{10, 20, 30}, Micro: []uint32{1, 2, 3}},
				0: {Macro: []uint64{}, Micro: []uint32{}},
			},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Header, out.Header)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripHistograms(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.HistogramsPayload{
			Meta:     schema.HistogramMeta{BinSizePs: 100, FirstBinIdx: 0, LastBinIdx: 9},
			Channels: map[int32][]uint32{1: {1, 2, 3}, 2: {4, 5, 6}},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripMarkers(t *testing.T) {
	pkt := schema.Packet{
		Header:  header(),
		Payload: schema.MarkersPayload{Channels: map[int32][]uint64{8: {100, 200}}},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripDtof(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.DtofPayload{
			Meta: schema.DtofMeta{ResolutionPs: 4, RangeMinPs: 0, RangeMaxPs: 12, IntegrationPeriodNs: 1000},
			Channels: map[int32][]uint32{
				0: {0, 2, 2, 2},
			},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripCri(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.CriPayload{
			Meta: schema.CriMeta{IntegrationPeriodNs: 500},
			Channels: map[int32]schema.CriEntry{
				3: {UtimeFrom: 10, UtimeUntil: 20, Count: 7},
			},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripCounts(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.CountsPayload{
			Meta:     schema.CountsMeta{IntegrationPeriodNs: 1000},
			Channels: map[int32]uint64{0: 5, 1: 9},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripG2(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.G2Payload{
			Meta: schema.G2Meta{DtNs: 1000, K: []uint64{0, 1, 2, 3}},
			Entries: []schema.G2Entry{
				{PairID: 0, Ch1: 0, Ch2: 1, G2: []float64{1.0, 1.1, 0.9, 1.0}},
			},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripG2i(t *testing.T) {
	pkt := schema.Packet{
		Header: header(),
		Payload: schema.G2iPayload{
			Meta: schema.G2Meta{DtNs: 1000, K: []uint64{0, 1}},
			Entries: []schema.G2iEntry{
				{PairID: 1, Ch1: 2, Ch2: 3, G2: []float64{1.0, 1.2}, UtimeFrom: 0, UtimeUntil: 105},
			},
		},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripPpsStats(t *testing.T) {
	pkt := schema.Packet{
		Header:  header(),
		Payload: schema.PpsStatsPayload{OffsetNs: -500, JitterNs: 12},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestRoundTripEvent(t *testing.T) {
	pkt := schema.Packet{
		Header:  header(),
		Payload: schema.EventPayload{EventType: schema.EventStop},
	}
	out := roundTrip(t, pkt)
	assert.Equal(t, pkt.Payload, out.Payload)
}

func TestUnmarshalRejectsUnknownPayloadTag(t *testing.T) {
	var s GogoSerializer
	pkt := schema.Packet{Header: header(), Payload: schema.EventPayload{EventType: schema.EventStart}}
	data, err := s.Marshal(pkt)
	require.NoError(t, err)
	data[len(data)-2] = 99 // corrupt the tag byte preceding the 1-byte event payload
	_, err = s.Unmarshal(data)
	assert.Error(t, err)
}
