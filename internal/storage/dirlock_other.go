//go:build !unix

package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirLock only records the LOCK file on platforms without flock; it does not
// exclude other processes.
type DirLock struct {
	file *os.File
}

func LockDir(dir string, exclusive bool) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "LOCK"), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return &DirLock{file: file}, nil
}

func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
