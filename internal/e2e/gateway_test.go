package e2e

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/grhooks/internal/dispatch"
	"github.com/mattjoyce/grhooks/internal/log"
	"github.com/mattjoyce/grhooks/internal/origin"
	"github.com/mattjoyce/grhooks/internal/routing"
	"github.com/mattjoyce/grhooks/internal/webhook"
)

const secret = "s3cr3t"

// writeFragment replaces path atomically so the watcher never sees a
// half-written file. The temp file lives outside the config directory.
func writeFragment(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), filepath.Base(path))
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func deliver(t *testing.T, url, event string, body []byte) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(origin.HeaderGitHubHookID, "1")
	req.Header.Set(origin.HeaderGitHubEvent, event)
	req.Header.Set(origin.HeaderGitHubDelivery, "d-1")
	req.Header.Set(origin.HeaderUserAgent, "GitHub-Hookshot/e2e")
	req.Header.Set(origin.HeaderHubSignature256, origin.SignSHA256(body, secret))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestGatewayHotReload(t *testing.T) {
	dir := t.TempDir()
	writeFragment(t, filepath.Join(dir, "10-ci.yaml"), `
webhooks:
  - path: /ci
    secret: s3cr3t
    events: [push]
    command: echo "ci ${{event.head_commit.id}}"
`)

	table, cfg, err := routing.Load(dir)
	require.NoError(t, err)

	executor := dispatch.New(dispatch.WithLogger(log.Discard()), dispatch.WithTempDir(t.TempDir()))
	server := webhook.New(webhook.ConfigFrom(cfg), table, executor, log.Discard())
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := routing.NewWatcher(dir, table, routing.WithLogger(log.Discard()), routing.WithDebounce(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	payload := []byte(`{"head_commit":{"id":"a1b2c3"}}`)

	status, body := deliver(t, ts.URL+"/ci", "push", payload)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ci a1b2c3", body)

	status, _ = deliver(t, ts.URL+"/deploy", "push", payload)
	assert.Equal(t, http.StatusNotFound, status)

	// A new fragment adds a route without a restart.
	writeFragment(t, filepath.Join(dir, "20-deploy.toml"), `
[[webhooks]]
path = "/deploy"
secret = "s3cr3t"
command = "echo deploy ${{event.type}}"
`)
	require.Eventually(t, func() bool {
		status, _ := deliver(t, ts.URL+"/deploy", "release", payload)
		return status == http.StatusOK
	}, 3*time.Second, 25*time.Millisecond)

	// A fragment with invalid settings is skipped; the other routes stay.
	writeFragment(t, filepath.Join(dir, "30-bad.yaml"), "port: 70000\n")
	time.Sleep(200 * time.Millisecond)
	status, body = deliver(t, ts.URL+"/deploy", "release", payload)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deploy release", body)

	// Removing a fragment removes its route.
	require.NoError(t, os.Remove(filepath.Join(dir, "20-deploy.toml")))
	require.Eventually(t, func() bool {
		status, _ := deliver(t, ts.URL+"/deploy", "release", payload)
		return status == http.StatusNotFound
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServerStartAndShutdown(t *testing.T) {
	table := routing.NewTable(nil)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	server := webhook.New(webhook.Config{Listen: addr}, table, dispatch.New(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
