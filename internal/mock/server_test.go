package mock

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// TestServer_DefaultRoutes tests that every workload route is served
func TestServer_DefaultRoutes(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/", "/hello/", "/sync/", "/async/", "/celery/", "/api/users/", "/api/posts/"} {
		status, _ := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, status, path)
	}

	resp, err := http.Post(ts.URL+"/api/users/", "application/json", strings.NewReader(`{"name":"LoadTest User 1"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name":"LoadTest User 1"}`, string(body))

	resp, err = http.Post(ts.URL+"/api/tasks/trigger/", "application/json", strings.NewReader(`{"task_type":"add"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	status, body404 := get(t, ts.URL+"/nope/")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body404, "No route configured for GET /nope/")

	hits := srv.Hits()
	assert.Equal(t, 1, hits["GET /hello/"])
	assert.Equal(t, 1, hits["POST /api/users/"])
	assert.Len(t, srv.GetLogs(), 10)
}

// TestServer_ErrorRate tests that injected failures answer 500
func TestServer_ErrorRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ErrorRate = 1
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/hello/")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "injected failure")
}

func TestServer_Delay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delay = 50
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	start := time.Now()
	status, _ := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestServer_PathTypes(t *testing.T) {
	cfg := &Config{Routes: []Route{
		{Method: "GET", Path: "/api/users/", PathType: "prefix", Status: 200, Body: "prefix"},
		{Method: "GET", Path: `^/items/\d+/$`, PathType: "regex", Status: 200, Body: "regex"},
	}}
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/api/users/42/")
	assert.Equal(t, "prefix", body)
	_, body = get(t, ts.URL+"/items/7/")
	assert.Equal(t, "regex", body)
	status, _ := get(t, ts.URL+"/items/x/")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	_, err := NewServer(&Config{}, nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{Routes: []Route{{Method: "GET", Path: "(", PathType: "regex"}}}, nil)
	assert.ErrorContains(t, err, "invalid regex")

	cfg := DefaultConfig()
	cfg.ErrorRate = 2
	_, err = NewServer(cfg, nil)
	assert.Error(t, err)
}

// TestServer_StartStop tests serving on a real listener
func TestServer_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)

	// Port 0 becomes the default port in NewServer; pick a free one instead
	srv.config.Port = freePort(t)
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	status, _ := get(t, srv.GetAddress()+"/hello/")
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, srv.Stop(context.Background()))
	_, err = http.Get(srv.GetAddress() + "/hello/")
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
port: 9001
errorRate: 0.1
routes:
  - method: GET
    path: /
    status: 200
    body: ok
`), 0644))

	cfg, err := LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 0.1, cfg.ErrorRate)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "ok", cfg.Routes[0].Body)

	jsoncPath := filepath.Join(dir, "routes.jsonc")
	require.NoError(t, os.WriteFile(jsoncPath, []byte(`{
  // demo
  "routes": [{"method": "POST", "path": "/api/posts/", "status": 201, "echo": true},],
}`), 0644))
	cfg, err = LoadConfig(jsoncPath)
	require.NoError(t, err)
	assert.True(t, cfg.Routes[0].Echo)

	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("port: 1\n"), 0644))
	_, err = LoadConfig(emptyPath)
	assert.ErrorContains(t, err, "no routes defined")
}
