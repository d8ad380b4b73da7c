package instrumentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(metricsExporter, tracingExporter string) Config {
	return Config{
		ServiceName:       "inboxforward-test",
		ServiceVersion:    "1.0.0",
		Enabled:           true,
		MetricsExporter:   metricsExporter,
		TracingExporter:   tracingExporter,
		TraceSamplingRate: 1.0,
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "inboxforward-test"})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.False(t, provider.PrometheusEnabled())
	assert.NotNil(t, provider.Metrics(), "a disabled provider still hands out a no-op recorder")
	assert.NotNil(t, provider.Tracer("test"))
	assert.NoError(t, provider.Shutdown(context.Background()))

	// Recording on the no-op recorder must not panic.
	provider.Metrics().RecordPollCycle(context.Background(), StatusSuccess, time.Second)

	rec := httptest.NewRecorder()
	provider.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name            string
		config          Config
		wantPrometheus  bool
		wantErrContains string
	}{
		{
			name:           "prometheus without tracing",
			config:         testConfig(ExporterPrometheus, ExporterNone),
			wantPrometheus: true,
		},
		{
			name:   "stdout metrics and traces",
			config: testConfig(ExporterStdout, ExporterStdout),
		},
		{
			name:            "unknown metrics exporter",
			config:          testConfig("invalid", ExporterNone),
			wantErrContains: "unsupported metrics exporter",
		},
		{
			name:            "unknown tracing exporter",
			config:          testConfig(ExporterPrometheus, "invalid"),
			wantErrContains: "unsupported tracing exporter",
		},
		{
			name:            "otlp tracing without endpoint",
			config:          testConfig(ExporterPrometheus, ExporterOTLP),
			wantErrContains: "OTLP endpoint is required",
		},
		{
			name:            "otlp metrics without endpoint",
			config:          testConfig(ExporterOTLP, ExporterNone),
			wantErrContains: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			provider, err := NewProvider(ctx, tt.config)
			if tt.wantErrContains != "" {
				assert.ErrorContains(t, err, tt.wantErrContains)
				return
			}
			require.NoError(t, err)
			defer func() { _ = provider.Shutdown(ctx) }()

			assert.True(t, provider.Enabled())
			assert.NotNil(t, provider.Metrics())
			assert.NotNil(t, provider.Tracer("test"))
			assert.Equal(t, tt.wantPrometheus, provider.PrometheusEnabled())
		})
	}
}

func TestProvider_MetricsHandler(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	provider.Metrics().RecordPollCycle(ctx, StatusSuccess, 2*time.Second)
	provider.Metrics().RecordMessage(ctx, MessageResultDelivered, "alice@example.com")

	rec := httptest.NewRecorder()
	provider.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "poll_cycles_total")
	assert.Contains(t, string(body), "messages_processed_total")
	assert.Contains(t, string(body), "go_goroutines", "runtime collectors are registered")
}

func TestProvider_SeparateRegistries(t *testing.T) {
	ctx := context.Background()
	first, err := NewProvider(ctx, testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Shutdown(ctx) })
	second, err := NewProvider(ctx, testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Shutdown(ctx) })

	first.Metrics().RecordPollCycle(ctx, StatusError, time.Second)

	rec := httptest.NewRecorder()
	second.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `status="error"`)
}
