package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "grhooks.pid")
	p, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Release() })

	pid, ok := Owner(path)
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, path, p.Path())
}

func TestAcquireHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "grhooks.pid")
	first, err := Acquire(path)
	require.NoError(t, err)

	// flock locks are per open file description, so a second open in the
	// same process conflicts too.
	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrHeld)
	assert.Contains(t, err.Error(), "pid")

	require.NoError(t, first.Release())
	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquireEmptyPath(t *testing.T) {
	_, err := Acquire("")
	assert.Error(t, err)
}

func TestOwnerGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grhooks.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, ok := Owner(path)
	assert.False(t, ok)
}

func TestReleaseNil(t *testing.T) {
	var p *PIDFile
	assert.NoError(t, p.Release())
}
