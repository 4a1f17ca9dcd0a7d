package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigMapsAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:         " ",
		AppVersion:      "1.2.0",
		Environment:     "production",
		LogLevel:        "warn",
		SlowQueryMs:     50,
		OtelEnabled:     true,
		OTLPEndpoint:    "collector:4317",
		OTLPProtocol:    "grpc",
		OtelSampleRatio: 3,
	})

	assert.Equal(t, "tuitionledger", cfg.ServiceName)
	assert.Equal(t, 50*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.True(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestConfigDebug(t *testing.T) {
	assert.True(t, Config{Environment: "Development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
