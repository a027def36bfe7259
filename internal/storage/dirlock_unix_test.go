//go:build unix

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockDirExcludesSecondHolder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := LockDir(dir, true)
	require.NoError(t, err)

	_, err = LockDir(dir, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "in use")

	_, err = LockDir(dir, false)
	require.Error(t, err)

	require.NoError(t, first.Release())

	shared1, err := LockDir(dir, false)
	require.NoError(t, err)
	shared2, err := LockDir(dir, false)
	require.NoError(t, err)
	require.NoError(t, shared1.Release())
	require.NoError(t, shared2.Release())
}
