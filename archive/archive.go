// Package archive persists one session's raw windows to a chunked,
// compressed recordio table, one record per append call. It backs the
// "raw HDF5 logger" role from the instrument side of the spec with a
// columnar archival format in the teacher's idiom.
package archive

import (
	"context"
	"encoding/binary"
	"fmt"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const trailerVersion = 1

// Archiver appends per-window raw data chunks to a session's archive
// file. Open fails if the file already exists: a session's archive is
// write-once.
type Archiver interface {
	Append(ctx context.Context, topic string, sequenceNumber int64, payload []byte) error
	Close(ctx context.Context) error
}

// archiveRecord is one archived chunk: a topic-tagged, checksummed
// payload. The schema is fixed for the lifetime of a session's archive.
type archiveRecord struct {
	Topic          string
	SequenceNumber int64
	Checksum       uint64
	Payload        []byte
}

func marshalArchiveRecord(scratch []byte, p interface{}) ([]byte, error) {
	r := p.(*archiveRecord)
	buf := scratch[:0]
	buf = append(buf, byte(len(r.Topic)))
	buf = append(buf, r.Topic...)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(r.SequenceNumber))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], r.Checksum)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(r.Payload)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, r.Payload...)
	return buf, nil
}

func unmarshalArchiveRecord(in []byte) (interface{}, error) {
	if len(in) < 1 {
		return nil, errors.E("archive: truncated record")
	}
	n := int(in[0])
	in = in[1:]
	if len(in) < n+24 {
		return nil, errors.E("archive: truncated record")
	}
	topic := string(in[:n])
	in = in[n:]
	seq := int64(binary.LittleEndian.Uint64(in[:8]))
	checksum := binary.LittleEndian.Uint64(in[8:16])
	plen := binary.LittleEndian.Uint64(in[16:24])
	in = in[24:]
	if uint64(len(in)) < plen {
		return nil, errors.E("archive: truncated payload")
	}
	payload := append([]byte(nil), in[:plen]...)
	if farm.Hash64(payload) != checksum {
		return nil, errors.E(fmt.Sprintf("archive: checksum mismatch for topic %q", topic))
	}
	return &archiveRecord{Topic: topic, SequenceNumber: seq, Checksum: checksum, Payload: payload}, nil
}

func archiveTrailer(numRecords int) []byte {
	var tmp [16]byte
	binary.LittleEndian.PutUint64(tmp[:8], uint64(trailerVersion))
	binary.LittleEndian.PutUint64(tmp[8:], uint64(numRecords))
	return tmp[:]
}

// RecordioArchiver is the reference Archiver, backed by
// github.com/grailbio/base/recordio with zstd chunk compression and
// github.com/dgryski/go-farm chunk checksums.
type RecordioArchiver struct {
	dst file.File
	w   *recordio.Writer
	n   int
}

// OpenExclusive creates a new archive at path, failing if a file is
// already there.
func OpenExclusive(ctx context.Context, path string) (*RecordioArchiver, error) {
	if _, err := file.Stat(ctx, path); err == nil {
		return nil, errors.E(fmt.Sprintf("archive: file already exists: %s", path))
	}
	dst, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "archive: creating", path)
	}
	w := recordio.NewWriter(dst.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalArchiveRecord,
		Transformers: []string{recordiozstd.Name},
	})
	return &RecordioArchiver{dst: dst, w: w}, nil
}

// Append writes one topic's payload as the next chunk.
func (a *RecordioArchiver) Append(ctx context.Context, topic string, sequenceNumber int64, payload []byte) error {
	a.w.Append(&archiveRecord{
		Topic:          topic,
		SequenceNumber: sequenceNumber,
		Checksum:       farm.Hash64(payload),
		Payload:        payload,
	})
	a.n++
	return nil
}

// Close finalizes the trailer and closes the underlying file.
func (a *RecordioArchiver) Close(ctx context.Context) (err error) {
	a.w.SetTrailer(archiveTrailer(a.n))
	if err = a.w.Finish(); err != nil {
		return errors.E(err, "archive: finishing")
	}
	return a.dst.Close(ctx)
}
