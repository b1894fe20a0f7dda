package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/api"
	"github.com/kartoza/stunting-risk/internal/config"
	"github.com/kartoza/stunting-risk/internal/inference"
	"github.com/kartoza/stunting-risk/internal/model/modeltest"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.Version = "test"
	cfg.DataDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, m *api.Model) *Server {
	t.Helper()
	s, err := New(cfg, m, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func testModel(t *testing.T) *api.Model {
	t.Helper()
	dir := modeltest.WritePack(t, t.TempDir())
	m, err := api.LoadModel(dir, inference.DefaultOptions())
	require.NoError(t, err)
	return m
}

func serve(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, s *Server, target string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return serve(s, "POST", target, body)
}

func TestStaticAndSPAFallback(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	for _, path := range []string{"/", "/klasifikasi"} {
		w := serve(s, "GET", path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "Klasifikasi Risiko Stunting", path)
	}

	w := serve(s, "GET", "/app.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/classify")
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	w := serve(s, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestHistoryWiring(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg, testModel(t))

	w := postJSON(t, s, "/api/classify", modeltest.StuntedRecord())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(s, "GET", "/api/classifications/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	_, err := os.Stat(filepath.Join(cfg.DataDir, "history.db"))
	assert.NoError(t, err)
}

func TestHistoryDisabledByConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	s := newTestServer(t, cfg, testModel(t))

	w := serve(s, "GET", "/api/classifications", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssets(t *testing.T) {
	t.Run("no model", func(t *testing.T) {
		s := newTestServer(t, testConfig(t), nil)
		w := serve(s, "GET", "/assets/cm.png", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("loaded", func(t *testing.T) {
		s := newTestServer(t, testConfig(t), testModel(t))
		w := serve(s, "GET", "/assets/cm.png", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

		w = serve(s, "GET", "/assets/../manifest.json", nil)
		assert.NotEqual(t, http.StatusOK, w.Code)
	})
}

func TestModelPackStatusEmpty(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	w := serve(s, "GET", "/api/modelpack/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, false, status["installed"])
	assert.Equal(t, false, status["loaded"])
}

func TestModelPackInstall(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg, nil)

	w := postJSON(t, s, "/api/classify", modeltest.HealthyRecord())
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	src := modeltest.WritePack(t, t.TempDir())
	zipPath := modeltest.ZipPack(t, src, filepath.Join(t.TempDir(), "pack.zip"), "stunting-v1")

	w = postJSON(t, s, "/api/modelpack/install", map[string]string{"path": zipPath})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, true, status["loaded"])
	assert.Equal(t, modeltest.PackVersion, status["version"])

	settings, err := config.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, status["path"], settings.ModelPackPath)

	w = postJSON(t, s, "/api/classify", modeltest.StuntedRecord())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"at_risk":true`)

	w = serve(s, "GET", "/api/modelpack/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"loaded":true`)

	// reinstalling replaces the active model
	w = postJSON(t, s, "/api/modelpack/install", map[string]string{"path": zipPath})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = postJSON(t, s, "/api/classify", modeltest.HealthyRecord())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModelPackBrokenReinstallKeepsActivePack(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg, nil)

	src := modeltest.WritePack(t, t.TempDir())
	good := modeltest.ZipPack(t, src, filepath.Join(t.TempDir(), "good.zip"), "stunting-v1")
	w := postJSON(t, s, "/api/modelpack/install", map[string]string{"path": good})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// same root, no classifier
	require.NoError(t, os.Remove(filepath.Join(src, "forest.json")))
	broken := modeltest.ZipPack(t, src, filepath.Join(t.TempDir(), "broken.zip"), "stunting-v1")
	w = postJSON(t, s, "/api/modelpack/install", map[string]string{"path": broken})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = serve(s, "GET", "/api/modelpack/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, true, status["loaded"])
	assert.Equal(t, modeltest.PackVersion, status["version"])

	w = serve(s, "GET", "/assets/cm.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = postJSON(t, s, "/api/classify", modeltest.StuntedRecord())
	assert.Equal(t, http.StatusOK, w.Code)

	// the saved pack still loads on the next start
	settings, err := config.LoadSettings()
	require.NoError(t, err)
	m, err := api.LoadModel(settings.ModelPackPath, inference.DefaultOptions())
	require.NoError(t, err)
	m.Close()

	storeDir, err := config.DataStoreDir()
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(storeDir, "modelpacks"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stunting-v1", entries[0].Name())
}

func TestModelPackInstallRejects(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg, nil)

	notZip := filepath.Join(t.TempDir(), "pack.tar")
	require.NoError(t, os.WriteFile(notZip, []byte("x"), 0o644))

	// a pack without a classifier
	src := modeltest.WritePack(t, t.TempDir())
	require.NoError(t, os.Remove(filepath.Join(src, "forest.json")))
	broken := modeltest.ZipPack(t, src, filepath.Join(t.TempDir(), "broken.zip"), "broken")

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"no path", `{}`},
		{"missing file", `{"path":"/does/not/exist.zip"}`},
		{"not a zip", `{"path":"` + notZip + `"}`},
		{"broken pack", `{"path":"` + broken + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(s, "POST", "/api/modelpack/install", []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := postJSON(t, s, "/api/classify", modeltest.HealthyRecord())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(Recovery(zap.NewNop()))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestRequestLoggerAssignsID(t *testing.T) {
	var seen string
	h := Chain(RequestLogger(zap.NewNop()))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, seen, 36)
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t, testConfig(t), testModel(t))

	body := `{"gender":"Male","padding":"` + strings.Repeat("x", maxRequestBody) + `"}`
	w := serve(s, "POST", "/api/classify", []byte(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
