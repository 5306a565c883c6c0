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
	charges               metric.Int64Counter
	chargedTokens         metric.Int64Counter
	adjustments           metric.Int64Counter
	negativeBalances      metric.Int64Counter
	pipelineFailures      metric.Int64Counter
	storageFailures       metric.Int64Counter
	billedInconsistencies metric.Int64Counter
	rateLimitAllowed      metric.Int64Counter
	rateLimitDenied       metric.Int64Counter
	ledgerDrift           metric.Int64Counter
	jobRuns               metric.Int64Counter
	jobErrors             metric.Int64Counter
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
		name = "atelier"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	instruments := []struct {
		name   string
		target *metric.Int64Counter
	}{
		{"atelier_ledger_charges_total", &m.charges},
		{"atelier_ledger_charged_tokens_total", &m.chargedTokens},
		{"atelier_ledger_adjustments_total", &m.adjustments},
		{"atelier_ledger_negative_balance_total", &m.negativeBalances},
		{"atelier_pipeline_failures_total", &m.pipelineFailures},
		{"atelier_asset_storage_failures_total", &m.storageFailures},
		{"atelier_billed_inconsistency_total", &m.billedInconsistencies},
		{"atelier_rate_limit_allowed_total", &m.rateLimitAllowed},
		{"atelier_rate_limit_denied_total", &m.rateLimitDenied},
		{"atelier_ledger_drift_accounts_total", &m.ledgerDrift},
		{"atelier_scheduler_job_runs_total", &m.jobRuns},
		{"atelier_scheduler_job_errors_total", &m.jobErrors},
	}
	for _, inst := range instruments {
		counter, err := meter.Int64Counter(inst.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", inst.name, err)
		}
		*inst.target = counter
	}

	return m, nil
}

// RecordCharge counts a committed charge and the tokens it debited.
func (m *Metrics) RecordCharge(ctx context.Context, feature string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.charges.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.chargedTokens.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

// RecordLedgerDrift counts accounts whose balance disagrees with grant plus usage.
func (m *Metrics) RecordLedgerDrift(ctx context.Context) {
	if m == nil {
		return
	}
	m.ledgerDrift.Add(ctx, 1)
}

// RecordJobRun counts a scheduler job run and, when failed, its error.
func (m *Metrics) RecordJobRun(ctx context.Context, job string, failed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("job", strings.TrimSpace(job)))
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	if failed {
		m.jobErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordAdjustment counts administrative balance changes by direction.
func (m *Metrics) RecordAdjustment(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("direction", strings.TrimSpace(direction)))
	m.adjustments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNegativeBalance counts charges that left an account below zero.
func (m *Metrics) RecordNegativeBalance(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.negativeBalances.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPipelineFailure counts halted pipelines by stage and reason.
func (m *Metrics) RecordPipelineFailure(ctx context.Context, stage, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("stage", strings.TrimSpace(stage)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.pipelineFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStorageFailure counts artifact persistence failures.
func (m *Metrics) RecordStorageFailure(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("backend", strings.TrimSpace(backend)))
	m.storageFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBilledInconsistency counts stored artifacts whose charge did not commit.
func (m *Metrics) RecordBilledInconsistency(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.billedInconsistencies.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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

// Account ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature":     {},
	"direction":   {},
	"stage":       {},
	"reason":      {},
	"backend":     {},
	"endpoint":    {},
	"status_code": {},
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
