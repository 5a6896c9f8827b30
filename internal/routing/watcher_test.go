package routing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/log"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestWatcher(t *testing.T, source string, opts ...Option) (*Watcher, *Table) {
	t.Helper()
	table, _, err := Load(source)
	require.NoError(t, err)
	opts = append([]Option{
		WithLogger(log.Discard()),
		WithDebounce(20 * time.Millisecond),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond, 200*time.Millisecond),
	}, opts...)
	return NewWatcher(source, table, opts...), table
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	writeConfig(t, path, "webhooks:\n  - path: /old\n    command: echo old\n")

	var applied []*config.Config
	w, table := newTestWatcher(t, path, OnReload(func(c *config.Config) { applied = append(applied, c) }))

	require.NoError(t, w.Reload(context.Background()))
	assert.Empty(t, applied, "unchanged content must not count as a reload")

	writeConfig(t, path, "webhooks:\n  - path: /new\n    command: echo new\n")
	require.NoError(t, w.Reload(context.Background()))
	require.Len(t, applied, 1)

	_, ok := table.Find("/old")
	assert.False(t, ok)
	_, ok = table.Find("/new")
	assert.True(t, ok)
}

func TestWatcherReloadKeepsTableOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	writeConfig(t, path, "webhooks:\n  - path: /ci\n    command: echo\n")
	w, table := newTestWatcher(t, path)
	before := table.Fingerprint()

	writeConfig(t, path, "webhooks: [ {")
	assert.Error(t, w.Reload(context.Background()))
	assert.Equal(t, before, table.Fingerprint())

	require.NoError(t, os.Remove(path))
	assert.Error(t, w.Reload(context.Background()), "missing file should fail after retries")
	_, ok := table.Find("/ci")
	assert.True(t, ok)
}

func TestWatcherReloadRetriesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	writeConfig(t, path, "webhooks:\n  - path: /ci\n    command: echo\n")
	w, table := newTestWatcher(t, path)

	require.NoError(t, os.Remove(path))
	go func() {
		time.Sleep(30 * time.Millisecond)
		tmp := path + ".tmp"
		_ = os.WriteFile(tmp, []byte("webhooks:\n  - path: /back\n    command: echo\n"), 0o644)
		_ = os.Rename(tmp, path)
	}()

	require.NoError(t, w.Reload(context.Background()))
	_, ok := table.Find("/back")
	assert.True(t, ok)
}

func TestWatcherRunPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "a.yaml"), "webhooks:\n  - path: /a\n    command: echo a\n")
	w, table := newTestWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before the change lands.
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, filepath.Join(dir, "b.yaml"), "webhooks:\n  - path: /b\n    command: echo b\n")

	assert.Eventually(t, func() bool {
		_, ok := table.Find("/b")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := table.Find("/a")
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcherRunMissingSource(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), NewTable(nil), WithLogger(log.Discard()))
	assert.Error(t, w.Run(context.Background()))
}
