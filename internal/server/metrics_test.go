package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxforward/internal/instrumentation"
)

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name        string
		config      MetricsServerConfig
		errContains string
	}{
		{
			name: "valid config",
			config: MetricsServerConfig{
				Addr:                    ":9090",
				InstrumentationProvider: createTestProvider(t),
				Health:                  NewHealthChecker(0),
			},
		},
		{
			name: "without provider",
			config: MetricsServerConfig{
				Addr:   ":9090",
				Health: NewHealthChecker(0),
			},
		},
		{
			name: "missing addr",
			config: MetricsServerConfig{
				Health: NewHealthChecker(0),
			},
			errContains: "address is required",
		},
		{
			name: "missing health checker",
			config: MetricsServerConfig{
				Addr: ":9090",
			},
			errContains: "health checker is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewMetricsServer(tt.config)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, server)
		})
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider := createTestProvider(t)
	provider.Metrics().RecordPollCycle(context.Background(), instrumentation.StatusSuccess, time.Second)

	health := NewHealthChecker(0)
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    ":0",
		InstrumentationProvider: provider,
		Health:                  health,
	})
	require.NoError(t, err)

	code, body := get(t, server.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "poll_cycles_total")

	code, _ = get(t, server.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, server.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code, "not ready before the first cycle")

	health.RecordCycle(nil)
	code, _ = get(t, server.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsServer_NoMetricsWithoutPrometheus(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    ":0",
		InstrumentationProvider: createDisabledProvider(t),
		Health:                  NewHealthChecker(0),
	})
	require.NoError(t, err)

	code, _ := get(t, server.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker(2)
	assert.False(t, h.IsReady())

	h.RecordCycle(nil)
	assert.True(t, h.IsReady())

	h.RecordCycle(errors.New("gmail unavailable"))
	assert.True(t, h.IsReady(), "one failure is tolerated")

	h.RecordCycle(errors.New("gmail unavailable"))
	assert.False(t, h.IsReady())

	code, body := get(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	var detailed DetailedHealthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &detailed))
	assert.Equal(t, healthStatusFailing, detailed.Status)
	assert.Equal(t, 3, detailed.Cycles)
	assert.Equal(t, 2, detailed.ConsecutiveFailures)
	assert.Equal(t, "gmail unavailable", detailed.LastError)
	assert.NotEmpty(t, detailed.LastCycle)

	h.RecordCycle(nil)
	assert.True(t, h.IsReady())

	h.SetShuttingDown()
	assert.False(t, h.IsReady())
	code, body = get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, healthStatusShuttingDown)
}

func TestMetricsServer_StartAndShutdown(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:   "127.0.0.1:0",
		Health: NewHealthChecker(0),
	})
	require.NoError(t, err)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + server.Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-serverErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsServer_ShutdownWithoutStart(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:   "127.0.0.1:0",
		Health: NewHealthChecker(0),
	})
	require.NoError(t, err)
	require.NoError(t, server.Shutdown(context.Background()))

	assert.NoError(t, server.Start(), "start after shutdown returns immediately")
}

// Helper functions

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = provider.Shutdown(ctx)
	})
	return provider
}

func createDisabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	require.NoError(t, err)
	return provider
}
