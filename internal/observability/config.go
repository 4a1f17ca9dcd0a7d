package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/config"
)

// Config is the slice of application config the logger, tracer, meter and
// query logger need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	// SlowQueryThreshold promotes ledger queries slower than this to warnings.
	SlowQueryThreshold time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "tuitionledger"
	}
	ratio := cfg.OtelSampleRatio
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}
	var slow time.Duration
	if cfg.SlowQueryMs > 0 {
		slow = time.Duration(cfg.SlowQueryMs) * time.Millisecond
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.TrimSpace(cfg.LogLevel),
		LogFormat:            strings.TrimSpace(cfg.LogFormat),
		SlowQueryThreshold:   slow,
		OtelEnabled:          cfg.OtelEnabled,
		OtelExporterEndpoint: cfg.OTLPEndpoint,
		OtelExporterProtocol: cfg.OTLPProtocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug is true for debug logging and for any non-production environment a
// developer runs locally.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
