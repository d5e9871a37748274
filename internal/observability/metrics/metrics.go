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
	eventsIngested   metric.Int64Counter
	eventsMerged     metric.Int64Counter
	personsResolved  metric.Int64Counter
	calendarFanout   metric.Int64Counter
	calendarDispatch metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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
		name = "doorbell"
	}
	meter := provider.Meter(name)

	eventsIngested, err := meter.Int64Counter("doorbell_events_ingested_total")
	if err != nil {
		return nil, err
	}
	eventsMerged, err := meter.Int64Counter("doorbell_events_merged_total")
	if err != nil {
		return nil, err
	}
	personsResolved, err := meter.Int64Counter("doorbell_persons_resolved_total")
	if err != nil {
		return nil, err
	}
	calendarFanout, err := meter.Int64Counter("doorbell_calendar_fanout_total")
	if err != nil {
		return nil, err
	}
	calendarDispatch, err := meter.Int64Counter("doorbell_calendar_dispatch_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("doorbell_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("doorbell_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsIngested:   eventsIngested,
		eventsMerged:     eventsMerged,
		personsResolved:  personsResolved,
		calendarFanout:   calendarFanout,
		calendarDispatch: calendarDispatch,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordEventIngested increments ingest counts by event type.
func (m *Metrics) RecordEventIngested(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventMerged increments form-key merge counts.
func (m *Metrics) RecordEventMerged(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventsMerged.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPersonResolved increments person resolution counts.
func (m *Metrics) RecordPersonResolved(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.personsResolved.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCalendarFanout increments fan-out projection counts.
func (m *Metrics) RecordCalendarFanout(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.calendarFanout.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCalendarDispatch increments external dispatch counts by provider and result.
func (m *Metrics) RecordCalendarDispatch(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.calendarDispatch.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, tenantID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("tenant_id", strings.TrimSpace(tenantID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, tenantID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("tenant_id", strings.TrimSpace(tenantID)),
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"tenant_id":   {},
	"endpoint":    {},
	"status_code": {},
	"event_type":  {},
	"provider":    {},
	"operation":   {},
	"outcome":     {},
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
