// Package codec serializes schema packets to and from the wire. It uses
// gogo/protobuf's proto.Buffer directly as a varint/length-delimited byte
// writer rather than generated message types, since the wire layout here
// is a hand-maintained tagged union, not a .proto schema.
package codec

import (
	"fmt"
	"math"
	"sort"

	"github.com/gogo/protobuf/proto"
	"github.com/grailbio/base/errors"

	"github.com/grailbio/pando/schema"
)

// payload type tags, first byte of the payload section.
const (
	tagTimestamps byte = 1
	tagHistograms byte = 2
	tagMarkers    byte = 3
	tagDtof       byte = 4
	tagCri        byte = 5
	tagCounts     byte = 6
	tagG2         byte = 7
	tagG2i        byte = 8
	tagPpsStats   byte = 9
	tagEvent      byte = 10
)

// GogoSerializer marshals schema.Packet values to and from a compact
// binary wire format built on proto.Buffer's varint/fixed64 primitives.
type GogoSerializer struct{}

// Marshal encodes pkt.
func (GogoSerializer) Marshal(pkt schema.Packet) ([]byte, error) {
	buf := proto.NewBuffer(nil)
	encodeZigzag(buf, int64(pkt.Header.ExperimentID))
	encodeZigzag(buf, pkt.Header.SequenceNumber)
	encodeZigzag(buf, pkt.Header.TimestampNs)

	tag, err := payloadTag(pkt.Payload)
	if err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return nil, errors.E(err, "codec: encoding payload tag")
	}
	if err := encodePayload(buf, tag, pkt.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a packet previously produced by Marshal.
func (GogoSerializer) Unmarshal(data []byte) (schema.Packet, error) {
	buf := proto.NewBuffer(data)

	experimentID, err := decodeZigzag(buf)
	if err != nil {
		return schema.Packet{}, errors.E(err, "codec: decoding experiment id")
	}
	sequenceNumber, err := decodeZigzag(buf)
	if err != nil {
		return schema.Packet{}, errors.E(err, "codec: decoding sequence number")
	}
	timestampNs, err := decodeZigzag(buf)
	if err != nil {
		return schema.Packet{}, errors.E(err, "codec: decoding timestamp")
	}

	tagv, err := buf.DecodeVarint()
	if err != nil {
		return schema.Packet{}, errors.E(err, "codec: decoding payload tag")
	}
	payload, err := decodePayload(buf, byte(tagv))
	if err != nil {
		return schema.Packet{}, err
	}

	return schema.Packet{
		Header: schema.Header{
			ExperimentID:   int32(experimentID),
			SequenceNumber: sequenceNumber,
			TimestampNs:    timestampNs,
		},
		Payload: payload,
	}, nil
}

func payloadTag(p schema.Payload) (byte, error) {
	switch p.(type) {
	case schema.TimestampsPayload:
		return tagTimestamps, nil
	case schema.HistogramsPayload:
		return tagHistograms, nil
	case schema.MarkersPayload:
		return tagMarkers, nil
	case schema.DtofPayload:
		return tagDtof, nil
	case schema.CriPayload:
		return tagCri, nil
	case schema.CountsPayload:
		return tagCounts, nil
	case schema.G2Payload:
		return tagG2, nil
	case schema.G2iPayload:
		return tagG2i, nil
	case schema.PpsStatsPayload:
		return tagPpsStats, nil
	case schema.EventPayload:
		return tagEvent, nil
	default:
		return 0, errors.E(fmt.Sprintf("codec: unknown payload type %T", p))
	}
}

func encodePayload(buf *proto.Buffer, tag byte, p schema.Payload) error {
	switch tag {
	case tagTimestamps:
		return encodeTimestamps(buf, p.(schema.TimestampsPayload))
	case tagHistograms:
		return encodeHistograms(buf, p.(schema.HistogramsPayload))
	case tagMarkers:
		return encodeMarkers(buf, p.(schema.MarkersPayload))
	case tagDtof:
		return encodeDtof(buf, p.(schema.DtofPayload))
	case tagCri:
		return encodeCri(buf, p.(schema.CriPayload))
	case tagCounts:
		return encodeCounts(buf, p.(schema.CountsPayload))
	case tagG2:
		return encodeG2(buf, p.(schema.G2Payload))
	case tagG2i:
		return encodeG2i(buf, p.(schema.G2iPayload))
	case tagPpsStats:
		return encodePpsStats(buf, p.(schema.PpsStatsPayload))
	case tagEvent:
		return encodeEvent(buf, p.(schema.EventPayload))
	default:
		return errors.E(fmt.Sprintf("codec: unknown payload tag %d", tag))
	}
}

func decodePayload(buf *proto.Buffer, tag byte) (schema.Payload, error) {
	switch tag {
	case tagTimestamps:
		return decodeTimestamps(buf)
	case tagHistograms:
		return decodeHistograms(buf)
	case tagMarkers:
		return decodeMarkers(buf)
	case tagDtof:
		return decodeDtof(buf)
	case tagCri:
		return decodeCri(buf)
	case tagCounts:
		return decodeCounts(buf)
	case tagG2:
		return decodeG2(buf)
	case tagG2i:
		return decodeG2i(buf)
	case tagPpsStats:
		return decodePpsStats(buf)
	case tagEvent:
		return decodeEvent(buf)
	default:
		return nil, errors.E(fmt.Sprintf("codec: unknown payload tag %d", tag))
	}
}

// --- primitive helpers -----------------------------------------------------

func encodeZigzag(buf *proto.Buffer, v int64) error {
	return buf.EncodeVarint(uint64((v << 1) ^ (v >> 63)))
}

func decodeZigzag(buf *proto.Buffer) (int64, error) {
	v, err := buf.DecodeVarint()
	if err != nil {
		return 0, err
	}
	return int64(v>>1) ^ -int64(v&1), nil
}

func encodeUint64s(buf *proto.Buffer, vals []uint64) error {
	if err := buf.EncodeVarint(uint64(len(vals))); err != nil {
		return errors.E(err, "codec: encoding slice length")
	}
	for _, v := range vals {
		if err := buf.EncodeVarint(v); err != nil {
			return errors.E(err, "codec: encoding uint64")
		}
	}
	return nil
}

func decodeUint64s(buf *proto.Buffer) ([]uint64, error) {
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding slice length")
	}
	vals := make([]uint64, n)
	for i := range vals {
		if vals[i], err = buf.DecodeVarint(); err != nil {
			return nil, errors.E(err, "codec: decoding uint64")
		}
	}
	return vals, nil
}

func encodeUint32s(buf *proto.Buffer, vals []uint32) error {
	if err := buf.EncodeVarint(uint64(len(vals))); err != nil {
		return errors.E(err, "codec: encoding slice length")
	}
	for _, v := range vals {
		if err := buf.EncodeVarint(uint64(v)); err != nil {
			return errors.E(err, "codec: encoding uint32")
		}
	}
	return nil
}

func decodeUint32s(buf *proto.Buffer) ([]uint32, error) {
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding slice length")
	}
	vals := make([]uint32, n)
	for i := range vals {
		v, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding uint32")
		}
		vals[i] = uint32(v)
	}
	return vals, nil
}

func encodeFloat64s(buf *proto.Buffer, vals []float64) error {
	if err := buf.EncodeVarint(uint64(len(vals))); err != nil {
		return errors.E(err, "codec: encoding slice length")
	}
	for _, v := range vals {
		if err := buf.EncodeFixed64(math.Float64bits(v)); err != nil {
			return errors.E(err, "codec: encoding float64")
		}
	}
	return nil
}

func decodeFloat64s(buf *proto.Buffer) ([]float64, error) {
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding slice length")
	}
	vals := make([]float64, n)
	for i := range vals {
		bits, err := buf.DecodeFixed64()
		if err != nil {
			return nil, errors.E(err, "codec: decoding float64")
		}
		vals[i] = math.Float64frombits(bits)
	}
	return vals, nil
}

func sortedInt32Keys(keys []int32) []int32 {
	out := append([]int32(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// --- payload codecs ---------------------------------------------------------

func encodeTimestamps(buf *proto.Buffer, p schema.TimestampsPayload) error {
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return errors.E(err, "codec: encoding channel key")
		}
		ct := p.Channels[k]
		if err := encodeUint64s(buf, ct.Macro); err != nil {
			return err
		}
		if err := encodeUint32s(buf, ct.Micro); err != nil {
			return err
		}
	}
	return nil
}

func decodeTimestamps(buf *proto.Buffer) (schema.Payload, error) {
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32]schema.ChannelTimestamps, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, errors.E(err, "codec: decoding channel key")
		}
		macro, err := decodeUint64s(buf)
		if err != nil {
			return nil, err
		}
		micro, err := decodeUint32s(buf)
		if err != nil {
			return nil, err
		}
		channels[int32(key)] = schema.ChannelTimestamps{Macro: macro, Micro: micro}
	}
	return schema.TimestampsPayload{Channels: channels}, nil
}

func encodeHistograms(buf *proto.Buffer, p schema.HistogramsPayload) error {
	if err := buf.EncodeVarint(p.Meta.BinSizePs); err != nil {
		return errors.E(err, "codec: encoding histogram meta")
	}
	if err := buf.EncodeVarint(p.Meta.FirstBinIdx); err != nil {
		return errors.E(err, "codec: encoding histogram meta")
	}
	if err := buf.EncodeVarint(p.Meta.LastBinIdx); err != nil {
		return errors.E(err, "codec: encoding histogram meta")
	}
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return err
		}
		if err := encodeUint32s(buf, p.Channels[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeHistograms(buf *proto.Buffer) (schema.Payload, error) {
	binSize, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding histogram meta")
	}
	firstBin, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding histogram meta")
	}
	lastBin, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding histogram meta")
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32][]uint32, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, err
		}
		counts, err := decodeUint32s(buf)
		if err != nil {
			return nil, err
		}
		channels[int32(key)] = counts
	}
	return schema.HistogramsPayload{
		Meta: schema.HistogramMeta{
			BinSizePs:   binSize,
			FirstBinIdx: firstBin,
			LastBinIdx:  lastBin,
		},
		Channels: channels,
	}, nil
}

func encodeMarkers(buf *proto.Buffer, p schema.MarkersPayload) error {
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return err
		}
		if err := encodeUint64s(buf, p.Channels[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeMarkers(buf *proto.Buffer) (schema.Payload, error) {
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32][]uint64, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, err
		}
		macro, err := decodeUint64s(buf)
		if err != nil {
			return nil, err
		}
		channels[int32(key)] = macro
	}
	return schema.MarkersPayload{Channels: channels}, nil
}

func encodeDtof(buf *proto.Buffer, p schema.DtofPayload) error {
	for _, v := range []uint64{p.Meta.ResolutionPs, p.Meta.RangeMinPs, p.Meta.RangeMaxPs, p.Meta.IntegrationPeriodNs} {
		if err := buf.EncodeVarint(v); err != nil {
			return errors.E(err, "codec: encoding dtof meta")
		}
	}
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return err
		}
		if err := encodeUint32s(buf, p.Channels[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeDtof(buf *proto.Buffer) (schema.Payload, error) {
	vals := make([]uint64, 4)
	for i := range vals {
		v, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding dtof meta")
		}
		vals[i] = v
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32][]uint32, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, err
		}
		counts, err := decodeUint32s(buf)
		if err != nil {
			return nil, err
		}
		channels[int32(key)] = counts
	}
	return schema.DtofPayload{
		Meta: schema.DtofMeta{
			ResolutionPs:        vals[0],
			RangeMinPs:          vals[1],
			RangeMaxPs:          vals[2],
			IntegrationPeriodNs: vals[3],
		},
		Channels: channels,
	}, nil
}

func encodeCri(buf *proto.Buffer, p schema.CriPayload) error {
	if err := buf.EncodeVarint(p.Meta.IntegrationPeriodNs); err != nil {
		return errors.E(err, "codec: encoding cri meta")
	}
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return err
		}
		e := p.Channels[k]
		if err := buf.EncodeVarint(uint64(e.UtimeFrom)); err != nil {
			return errors.E(err, "codec: encoding cri entry")
		}
		if err := buf.EncodeVarint(uint64(e.UtimeUntil)); err != nil {
			return errors.E(err, "codec: encoding cri entry")
		}
		if err := buf.EncodeVarint(e.Count); err != nil {
			return errors.E(err, "codec: encoding cri entry")
		}
	}
	return nil
}

func decodeCri(buf *proto.Buffer) (schema.Payload, error) {
	period, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding cri meta")
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32]schema.CriEntry, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, err
		}
		from, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding cri entry")
		}
		until, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding cri entry")
		}
		count, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding cri entry")
		}
		channels[int32(key)] = schema.CriEntry{
			UtimeFrom:  uint32(from),
			UtimeUntil: uint32(until),
			Count:      count,
		}
	}
	return schema.CriPayload{Meta: schema.CriMeta{IntegrationPeriodNs: period}, Channels: channels}, nil
}

func encodeCounts(buf *proto.Buffer, p schema.CountsPayload) error {
	if err := buf.EncodeVarint(p.Meta.IntegrationPeriodNs); err != nil {
		return errors.E(err, "codec: encoding counts meta")
	}
	var keys []int32
	for k := range p.Channels {
		keys = append(keys, k)
	}
	keys = sortedInt32Keys(keys)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return errors.E(err, "codec: encoding channel count")
	}
	for _, k := range keys {
		if err := encodeZigzag(buf, int64(k)); err != nil {
			return err
		}
		if err := buf.EncodeVarint(p.Channels[k]); err != nil {
			return errors.E(err, "codec: encoding count")
		}
	}
	return nil
}

func decodeCounts(buf *proto.Buffer) (schema.Payload, error) {
	period, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding counts meta")
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding channel count")
	}
	channels := make(map[int32]uint64, n)
	for i := uint64(0); i < n; i++ {
		key, err := decodeZigzag(buf)
		if err != nil {
			return nil, err
		}
		count, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding count")
		}
		channels[int32(key)] = count
	}
	return schema.CountsPayload{Meta: schema.CountsMeta{IntegrationPeriodNs: period}, Channels: channels}, nil
}

func encodeG2Meta(buf *proto.Buffer, m schema.G2Meta) error {
	if err := buf.EncodeVarint(m.DtNs); err != nil {
		return errors.E(err, "codec: encoding g2 meta")
	}
	return encodeUint64s(buf, m.K)
}

func decodeG2Meta(buf *proto.Buffer) (schema.G2Meta, error) {
	dt, err := buf.DecodeVarint()
	if err != nil {
		return schema.G2Meta{}, errors.E(err, "codec: decoding g2 meta")
	}
	k, err := decodeUint64s(buf)
	if err != nil {
		return schema.G2Meta{}, err
	}
	return schema.G2Meta{DtNs: dt, K: k}, nil
}

func encodeG2(buf *proto.Buffer, p schema.G2Payload) error {
	if err := encodeG2Meta(buf, p.Meta); err != nil {
		return err
	}
	if err := buf.EncodeVarint(uint64(len(p.Entries))); err != nil {
		return errors.E(err, "codec: encoding entry count")
	}
	for _, e := range p.Entries {
		for _, v := range []int32{e.PairID, e.Ch1, e.Ch2} {
			if err := encodeZigzag(buf, int64(v)); err != nil {
				return errors.E(err, "codec: encoding g2 entry")
			}
		}
		if err := encodeFloat64s(buf, e.G2); err != nil {
			return err
		}
	}
	return nil
}

func decodeG2(buf *proto.Buffer) (schema.Payload, error) {
	meta, err := decodeG2Meta(buf)
	if err != nil {
		return nil, err
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding entry count")
	}
	entries := make([]schema.G2Entry, n)
	for i := range entries {
		ids := make([]int32, 3)
		for j := range ids {
			v, err := decodeZigzag(buf)
			if err != nil {
				return nil, errors.E(err, "codec: decoding g2 entry")
			}
			ids[j] = int32(v)
		}
		g2, err := decodeFloat64s(buf)
		if err != nil {
			return nil, err
		}
		entries[i] = schema.G2Entry{PairID: ids[0], Ch1: ids[1], Ch2: ids[2], G2: g2}
	}
	return schema.G2Payload{Meta: meta, Entries: entries}, nil
}

func encodeG2i(buf *proto.Buffer, p schema.G2iPayload) error {
	if err := encodeG2Meta(buf, p.Meta); err != nil {
		return err
	}
	if err := buf.EncodeVarint(uint64(len(p.Entries))); err != nil {
		return errors.E(err, "codec: encoding entry count")
	}
	for _, e := range p.Entries {
		for _, v := range []int32{e.PairID, e.Ch1, e.Ch2} {
			if err := encodeZigzag(buf, int64(v)); err != nil {
				return errors.E(err, "codec: encoding g2i entry")
			}
		}
		if err := encodeFloat64s(buf, e.G2); err != nil {
			return err
		}
		if err := buf.EncodeVarint(uint64(e.UtimeFrom)); err != nil {
			return errors.E(err, "codec: encoding g2i entry")
		}
		if err := buf.EncodeVarint(uint64(e.UtimeUntil)); err != nil {
			return errors.E(err, "codec: encoding g2i entry")
		}
	}
	return nil
}

func decodeG2i(buf *proto.Buffer) (schema.Payload, error) {
	meta, err := decodeG2Meta(buf)
	if err != nil {
		return nil, err
	}
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding entry count")
	}
	entries := make([]schema.G2iEntry, n)
	for i := range entries {
		ids := make([]int32, 3)
		for j := range ids {
			v, err := decodeZigzag(buf)
			if err != nil {
				return nil, errors.E(err, "codec: decoding g2i entry")
			}
			ids[j] = int32(v)
		}
		g2, err := decodeFloat64s(buf)
		if err != nil {
			return nil, err
		}
		from, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding g2i entry")
		}
		until, err := buf.DecodeVarint()
		if err != nil {
			return nil, errors.E(err, "codec: decoding g2i entry")
		}
		entries[i] = schema.G2iEntry{
			PairID:     ids[0],
			Ch1:        ids[1],
			Ch2:        ids[2],
			G2:         g2,
			UtimeFrom:  uint32(from),
			UtimeUntil: uint32(until),
		}
	}
	return schema.G2iPayload{Meta: meta, Entries: entries}, nil
}

func encodePpsStats(buf *proto.Buffer, p schema.PpsStatsPayload) error {
	if err := encodeZigzag(buf, p.OffsetNs); err != nil {
		return errors.E(err, "codec: encoding pps stats")
	}
	if err := encodeZigzag(buf, p.JitterNs); err != nil {
		return errors.E(err, "codec: encoding pps stats")
	}
	return nil
}

func decodePpsStats(buf *proto.Buffer) (schema.Payload, error) {
	offset, err := decodeZigzag(buf)
	if err != nil {
		return nil, errors.E(err, "codec: decoding pps stats")
	}
	jitter, err := decodeZigzag(buf)
	if err != nil {
		return nil, errors.E(err, "codec: decoding pps stats")
	}
	return schema.PpsStatsPayload{OffsetNs: offset, JitterNs: jitter}, nil
}

func encodeEvent(buf *proto.Buffer, p schema.EventPayload) error {
	if err := buf.EncodeVarint(uint64(p.EventType)); err != nil {
		return errors.E(err, "codec: encoding event")
	}
	return nil
}

func decodeEvent(buf *proto.Buffer) (schema.Payload, error) {
	v, err := buf.DecodeVarint()
	if err != nil {
		return nil, errors.E(err, "codec: decoding event")
	}
	return schema.EventPayload{EventType: schema.EventType(v)}, nil
}
