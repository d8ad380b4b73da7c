package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name            string
		config          Config
		wantErrContains string
	}{
		{
			name:   "prometheus without tracing",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1},
		},
		{
			name:   "empty exporters",
			config: Config{},
		},
		{
			name:            "sampling rate too high",
			config:          Config{TraceSamplingRate: 1.5},
			wantErrContains: "sampling rate",
		},
		{
			name:            "sampling rate negative",
			config:          Config{TraceSamplingRate: -0.1},
			wantErrContains: "sampling rate",
		},
		{
			name:            "invalid metrics exporter",
			config:          Config{MetricsExporter: "graphite"},
			wantErrContains: `invalid metrics exporter "graphite"`,
		},
		{
			name:            "invalid tracing exporter",
			config:          Config{TracingExporter: "zipkin"},
			wantErrContains: `invalid tracing exporter "zipkin"`,
		},
		{
			name:            "otlp tracing without endpoint",
			config:          Config{TracingExporter: ExporterOTLP},
			wantErrContains: "OTLP tracing exporter",
		},
		{
			name:            "otlp metrics without endpoint",
			config:          Config{MetricsExporter: ExporterOTLP},
			wantErrContains: "OTLP metrics exporter",
		},
		{
			name:   "otlp with endpoint",
			config: Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErrContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErrContains)
		})
	}
}
