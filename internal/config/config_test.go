package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadObservabilitySettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "75")

	cfg := Load()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, "http", cfg.OTLPProtocol)
	assert.Equal(t, 0.5, cfg.OtelSampleRatio)
	assert.Equal(t, 75, cfg.SlowQueryMs)
	assert.True(t, cfg.OtelEnabled)
}

func TestLoadOtelDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")

	assert.False(t, Load().OtelEnabled)
}
