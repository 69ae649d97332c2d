package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wntrblm/gemsettings/pkg/fix16"
	"github.com/wntrblm/gemsettings/pkg/nvm"
	"github.com/wntrblm/gemsettings/pkg/settings"
	"github.com/wntrblm/gemsettings/pkg/snapshot"
)

const testAPIKey = "test-key"

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	store     *nvm.MemoryStore
	manager   *settings.Manager
	snapshots *snapshot.Store
}

// setupTestServer creates a server over an in-memory NVM image and a
// temporary snapshot database
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store := nvm.NewMemoryStore(256)
	manager := settings.NewManager(store, settings.ManagerConfig{Logger: zerolog.Nop()})

	snaps, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = snaps.Close() })

	server := NewServer(manager, snaps, ServerConfig{APIKey: testAPIKey}, NewMetrics(), zerolog.Nop())
	return &testEnv{
		server:    server,
		handler:   server.Router(),
		store:     store,
		manager:   manager,
		snapshots: snaps,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_MetricsUnauthenticated(t *testing.T) {
	env := setupTestServer(t)

	// an erased image produces one invalid load
	env.do(t, http.MethodGet, "/api/v1/settings", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gemsettings_settings_invalid_loads_total 1")
	assert.Contains(t, w.Body.String(), `gemsettings_http_requests_total{endpoint="/api/v1/settings",method="GET",status_code="200"} 1`)
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]string](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", resp.Data["status"])
}

func TestHandleGetSettings_ErasedImage(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SettingsResponse](t, w)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, settings.Defaults(), resp.Data.Record)
}

func TestHandlePutSettings(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPut, "/api/v1/settings", []byte(`{"adc_gain_corr": 1000, "chorus_frequency": 0.5}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, valid, err := env.manager.Load()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, uint16(1000), rec.AdcGainCorr)
	assert.Equal(t, fix16.FromFloat(0.5), rec.ChorusFrequency)
	// omitted fields keep the loaded values
	assert.Equal(t, settings.Defaults().LedBrightness, rec.LedBrightness)
}

func TestHandlePutSettings_NullKeepsField(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPut, "/api/v1/settings", []byte(`{"castor_knob_min": null, "led_brightness": 9}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, valid, err := env.manager.Load()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, settings.Defaults().CastorKnobMin, rec.CastorKnobMin)
	assert.Equal(t, uint16(9), rec.LedBrightness)
}

func TestHandlePutSettings_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "gain too low", body: `{"adc_gain_corr": 511}`},
		{name: "gain too high", body: `{"adc_gain_corr": 4097}`},
		{name: "brightness too high", body: `{"led_brightness": 256}`},
		{name: "unknown field", body: `{"volume": 11}`},
		{name: "malformed json", body: `{"adc_gain_corr":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t)

			w := env.do(t, http.MethodPut, "/api/v1/settings", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			_, valid, err := env.manager.Load()
			require.NoError(t, err)
			assert.False(t, valid, "nothing should have been written")
		})
	}
}

func TestHandleEraseSettings(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.manager.Save(settings.Defaults()))

	w := env.do(t, http.MethodDelete, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	raw, err := env.store.Read(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{nvm.ErasedByte}, raw)

	_, valid, err := env.manager.Load()
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHandleGetRaw(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.manager.Save(settings.Defaults()))

	w := env.do(t, http.MethodGet, "/api/v1/settings/raw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Len(t, w.Body.Bytes(), settings.Size)
	assert.Equal(t, byte(settings.Marker), w.Body.Bytes()[0])
}

func TestHandleGetFormat(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/settings/format", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Valid bool     `json:"valid"`
		Lines []string `json:"lines"`
	}](t, w)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Lines, 15)
	assert.True(t, strings.HasPrefix(resp.Data.Lines[0], "Settings"))
}

func TestHandleGetDefaults(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/settings/defaults", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[settings.Record](t, w)
	assert.Equal(t, settings.Defaults(), resp.Data)
}

func TestSnapshotLifecycle(t *testing.T) {
	env := setupTestServer(t)

	custom := settings.Defaults()
	custom.AdcGainCorr = 3000
	require.NoError(t, env.manager.Save(custom))

	w := env.do(t, http.MethodPost, "/api/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[SnapshotResponse](t, w)
	require.True(t, created.Data.Valid)
	assert.Equal(t, custom, *created.Data.Record)

	w = env.do(t, http.MethodGet, "/api/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]SnapshotResponse](t, w)
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.Data.ID, listed.Data[0].ID)

	require.NoError(t, env.manager.Erase())

	w = env.do(t, http.MethodPost, "/api/v1/snapshots/"+created.Data.ID.String()+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, valid, err := env.manager.Load()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, custom, rec)

	w = env.do(t, http.MethodDelete, "/api/v1/snapshots/"+created.Data.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/snapshots/"+created.Data.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestoreSnapshot_Errors(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/snapshots/not-a-ksuid/restore", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/snapshots/"+ksuid.New().String()+"/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a stored record that fails validation is refused
	bad := env.manager.Codec().Encode(settings.Defaults())
	bad[0] = 0x00
	id, err := env.snapshots.Create(bad)
	require.NoError(t, err)

	w = env.do(t, http.MethodPost, "/api/v1/snapshots/"+id.String()+"/restore", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSnapshots_NotConfigured(t *testing.T) {
	manager := settings.NewManager(nvm.NewMemoryStore(64), settings.ManagerConfig{Logger: zerolog.Nop()})
	server := NewServer(manager, nil, ServerConfig{APIKey: testAPIKey}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type failingStore struct{}

func (failingStore) Read(uint32, int) ([]byte, error) { return nil, errors.New("bus fault") }
func (failingStore) Write(uint32, []byte) error      { return errors.New("bus fault") }

func TestHandlers_StoreFailure(t *testing.T) {
	manager := settings.NewManager(failingStore{}, settings.ManagerConfig{Logger: zerolog.Nop()})
	server := NewServer(manager, nil, ServerConfig{APIKey: testAPIKey}, nil, zerolog.Nop())
	handler := server.Router()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/settings", http.StatusInternalServerError},
		{http.MethodDelete, "/api/v1/settings", http.StatusInternalServerError},
		{http.MethodGet, "/api/v1/settings/raw", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("X-API-Key", testAPIKey)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[any](t, w)
			assert.Contains(t, resp.Error, "bus fault")
		})
	}
}
