package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	chargesGenerated      metric.Int64Counter
	paymentsRecorded      metric.Int64Counter
	paymentAmount         metric.Int64Counter
	chargesSettled        metric.Int64Counter
	balanceRecalculations metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tuitionledger"
	}
	meter := provider.Meter(name)

	chargesGenerated, err := meter.Int64Counter("tuition_charges_generated_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("tuition_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	paymentAmount, err := meter.Int64Counter("tuition_payment_amount_total")
	if err != nil {
		return nil, err
	}
	chargesSettled, err := meter.Int64Counter("tuition_charges_settled_total")
	if err != nil {
		return nil, err
	}
	balanceRecalculations, err := meter.Int64Counter("tuition_balance_recalculations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		chargesGenerated:      chargesGenerated,
		paymentsRecorded:      paymentsRecorded,
		paymentAmount:         paymentAmount,
		chargesSettled:        chargesSettled,
		balanceRecalculations: balanceRecalculations,
	}, nil
}

// RecordChargesGenerated adds the number of charges created by a generation run.
func (m *Metrics) RecordChargesGenerated(ctx context.Context, itemCode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("item_code", strings.TrimSpace(itemCode)))
	m.chargesGenerated.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordPayment increments payment counts and amounts.
func (m *Metrics) RecordPayment(ctx context.Context, method string, amount int64, settled int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.TrimSpace(method)))
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.paymentAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
	if settled > 0 {
		m.chargesSettled.Add(ctx, int64(settled), metric.WithAttributes(attrs...))
	}
}

// RecordBalanceRecalculation counts monthly balance rebuilds by trigger.
func (m *Metrics) RecordBalanceRecalculation(ctx context.Context, trigger string, periods int) {
	if m == nil || periods <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("trigger", strings.TrimSpace(trigger)))
	m.balanceRecalculations.Add(ctx, int64(periods), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"item_code":   {},
	"method":      {},
	"trigger":     {},
	"status_code": {},
	"endpoint":    {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
