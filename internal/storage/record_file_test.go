package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-server/internal/auctionerrors"
	"auction-server/internal/recordlock"
)

const testRecordSize = 16

func openTestFile(t *testing.T) *RecordFile {
	t.Helper()
	f, err := OpenRecordFile(filepath.Join(t.TempDir(), "records.dat"), testRecordSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func record(b byte) []byte {
	return bytes.Repeat([]byte{b}, testRecordSize)
}

func TestAppendReadWrite(t *testing.T) {
	t.Parallel()

	f := openTestFile(t)

	id, err := f.Append(record('a'))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	id, err = f.Append(record('b'))
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	count, err := f.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	buf := make([]byte, testRecordSize)
	require.NoError(t, f.ReadRecord(2, buf))
	require.Equal(t, record('b'), buf)

	require.NoError(t, f.WriteRecord(1, record('z')))
	require.NoError(t, f.ReadRecord(1, buf))
	require.Equal(t, record('z'), buf)
}

func TestMissingRecords(t *testing.T) {
	t.Parallel()

	f := openTestFile(t)
	_, err := f.Append(record('a'))
	require.NoError(t, err)

	buf := make([]byte, testRecordSize)
	require.ErrorIs(t, f.ReadRecord(0, buf), ErrNoRecord)
	require.ErrorIs(t, f.ReadRecord(2, buf), ErrNoRecord)
	require.ErrorIs(t, f.WriteRecord(5, record('x')), ErrNoRecord)
	require.Error(t, f.ReadRecord(1, make([]byte, 3)))
}

func TestOpenRejectsMisalignedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, testRecordSize+3), 0o644))

	_, err := OpenRecordFile(path, testRecordSize)
	require.ErrorIs(t, err, auctionerrors.ErrCorruptRecord)
	require.Equal(t, auctionerrors.KindIO, auctionerrors.KindOf(err))
}

func TestScanStopsEarly(t *testing.T) {
	t.Parallel()

	f := openTestFile(t)
	for _, b := range []byte("abcde") {
		_, err := f.Append(record(b))
		require.NoError(t, err)
	}

	var seen []int64
	err := f.Scan(func(id int64, rec []byte) (bool, error) {
		seen = append(seen, id)
		return rec[0] != 'c', nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, seen)
}

func TestConcurrentAppendsAssignDistinctIDs(t *testing.T) {
	t.Parallel()

	f := openTestFile(t)
	const n = 40

	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := f.LockAll(recordlock.Exclusive)
			defer l.Release()
			id, err := f.Append(record('q'))
			if !assert.NoError(t, err) {
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	count, err := f.Count()
	require.NoError(t, err)
	require.Equal(t, int64(n), count)
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persist.dat")
	f, err := OpenRecordFile(path, testRecordSize)
	require.NoError(t, err)
	_, err = f.Append(record('p'))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	f, err = OpenRecordFile(path, testRecordSize)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, testRecordSize)
	require.NoError(t, f.ReadRecord(1, buf))
	require.Equal(t, record('p'), buf)
}
