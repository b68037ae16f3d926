package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/recordio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenExclusiveRejectsExistingPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.rio")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenExclusive(ctx, path)
	assert.Error(t, err)
}

func TestAppendAndCloseWritesReadableRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.rio")

	a, err := OpenExclusive(ctx, path)
	require.NoError(t, err)
	require.NoError(t, a.Append(ctx, "counts", 1, []byte("hello")))
	require.NoError(t, a.Append(ctx, "dtof", 2, []byte("world")))
	require.NoError(t, a.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := recordio.NewScanner(f, recordio.ScannerOpts{Unmarshal: unmarshalArchiveRecord})
	var got []*archiveRecord
	for scanner.Scan() {
		got = append(got, scanner.Get().(*archiveRecord))
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "counts", got[0].Topic)
	assert.Equal(t, []byte("hello"), got[0].Payload)
	assert.Equal(t, "dtof", got[1].Topic)
	assert.Equal(t, []byte("world"), got[1].Payload)
}
