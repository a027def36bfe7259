// Package storage holds fixed-length record files and the data directory
// instance lock.
package storage

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"auction-server/internal/auctionerrors"
	"auction-server/internal/recordlock"
)

// ErrNoRecord is returned when an id lies outside the file.
var ErrNoRecord = errors.New("storage: no such record")

// RecordFile is a file of fixed-length records addressed by 1-based id.
// Record id lives at byte offset (id-1)*recordSize. The file carries its own
// lock table; callers lock the records they touch before reading or writing.
type RecordFile struct {
	file       *os.File
	path       string
	recordSize int64
	locks      *recordlock.Table

	closeOnce sync.Once
}

// OpenRecordFile opens (creating if needed) the record file at path. A file
// whose size is not a multiple of recordSize is rejected as corrupt.
func OpenRecordFile(path string, recordSize int) (*RecordFile, error) {
	if path == "" {
		return nil, fmt.Errorf("open record file: empty path")
	}
	if recordSize <= 0 {
		return nil, fmt.Errorf("open record file %s: invalid record size %d", path, recordSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat record file %s: %w", path, err)
	}
	if info.Size()%int64(recordSize) != 0 {
		_ = file.Close()
		return nil, fmt.Errorf("record file %s: size %d not a multiple of %d: %w",
			path, info.Size(), recordSize, auctionerrors.ErrCorruptRecord)
	}

	return &RecordFile{
		file:       file,
		path:       path,
		recordSize: int64(recordSize),
		locks:      recordlock.NewTable(),
	}, nil
}

func (f *RecordFile) Path() string      { return f.path }
func (f *RecordFile) RecordSize() int64 { return f.recordSize }

// LockRecord blocks until the range of record id is locked in mode.
func (f *RecordFile) LockRecord(mode recordlock.Mode, id int64) *recordlock.Lock {
	return f.locks.Acquire(mode, recordlock.Record(id, f.recordSize))
}

// LockAll blocks until the whole file is locked in mode.
func (f *RecordFile) LockAll(mode recordlock.Mode) *recordlock.Lock {
	return f.locks.Acquire(mode, recordlock.Whole())
}

// Count returns the number of complete records in the file.
func (f *RecordFile) Count() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %v: %w", f.path, err, auctionerrors.ErrIO)
	}
	return info.Size() / f.recordSize, nil
}

// ReadRecord fills buf with record id. buf must be RecordSize bytes.
func (f *RecordFile) ReadRecord(id int64, buf []byte) error {
	if err := f.checkBuf(buf); err != nil {
		return err
	}
	if id < 1 || id > math.MaxInt64/f.recordSize {
		return ErrNoRecord
	}

	n, err := f.file.ReadAt(buf, (id-1)*f.recordSize)
	if n == len(buf) {
		return nil
	}
	if n == 0 && errors.Is(err, io.EOF) {
		return ErrNoRecord
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read record %d of %s: short read %d/%d (%v): %w",
		id, f.path, n, len(buf), err, auctionerrors.ErrIO)
}

// WriteRecord overwrites record id with buf. The record must already exist.
func (f *RecordFile) WriteRecord(id int64, buf []byte) error {
	if err := f.checkBuf(buf); err != nil {
		return err
	}
	count, err := f.Count()
	if err != nil {
		return err
	}
	if id < 1 || id > count {
		return ErrNoRecord
	}
	return f.writeAt(id, buf)
}

// Append writes buf as a new record and returns its id. The caller must hold
// an exclusive whole-file lock so id assignment cannot race.
func (f *RecordFile) Append(buf []byte) (int64, error) {
	if err := f.checkBuf(buf); err != nil {
		return 0, err
	}
	count, err := f.Count()
	if err != nil {
		return 0, err
	}
	id := count + 1
	if err := f.writeAt(id, buf); err != nil {
		return 0, err
	}
	return id, nil
}

// Scan reads records in id order and hands each to fn until fn returns
// false or an error. The caller must hold a whole-file lock. The slice passed
// to fn is reused between calls.
func (f *RecordFile) Scan(fn func(id int64, rec []byte) (bool, error)) error {
	count, err := f.Count()
	if err != nil {
		return err
	}

	buf := make([]byte, f.recordSize)
	for id := int64(1); id <= count; id++ {
		if err := f.ReadRecord(id, buf); err != nil {
			return err
		}
		more, err := fn(id, buf)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// Sync flushes the file to stable storage.
func (f *RecordFile) Sync() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %v: %w", f.path, err, auctionerrors.ErrIO)
	}
	return nil
}

// Close syncs and closes the file. Further calls are no-ops.
func (f *RecordFile) Close() error {
	var err error
	f.closeOnce.Do(func() {
		if syncErr := f.file.Sync(); syncErr != nil {
			err = fmt.Errorf("sync %s: %w", f.path, syncErr)
		}
		if closeErr := f.file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", f.path, closeErr)
		}
	})
	return err
}

func (f *RecordFile) writeAt(id int64, buf []byte) error {
	n, err := f.file.WriteAt(buf, (id-1)*f.recordSize)
	if err != nil || n != len(buf) {
		return fmt.Errorf("write record %d of %s: short write %d/%d (%v): %w",
			id, f.path, n, len(buf), err, auctionerrors.ErrIO)
	}
	return nil
}

func (f *RecordFile) checkBuf(buf []byte) error {
	if int64(len(buf)) != f.recordSize {
		return fmt.Errorf("record buffer is %d bytes, want %d", len(buf), f.recordSize)
	}
	return nil
}
