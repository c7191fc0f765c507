package db

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Skryldev/storefront/db"

// ── Tracing ──────────────────────────────────────────────────────────────────

type otelTracer struct {
	tracer trace.Tracer
	system string
}

// NewOTelTracer returns a Tracer that emits one client span per statement.
// A nil provider falls back to the global one. system is the db.system
// attribute ("postgresql", "mysql", "sqlite").
func NewOTelTracer(tp trace.TracerProvider, system string) Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &otelTracer{tracer: tp.Tracer(instrumentationName), system: system}
}

func (t *otelTracer) StartSpan(ctx context.Context, query string, start time.Time) context.Context {
	ctx, _ = t.tracer.Start(ctx, "db."+statementKind(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", trimQuery(query)),
		),
	)
	return ctx
}

func (t *otelTracer) EndSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ── Metrics ──────────────────────────────────────────────────────────────────

type otelCollector struct {
	duration metric.Float64Histogram
	system   string
}

// NewOTelCollector returns a MetricsCollector recording statement latency
// in the "db.client.duration" histogram, labelled by operation and outcome.
// A nil provider falls back to the global one.
func NewOTelCollector(mp metric.MeterProvider, system string) (MetricsCollector, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	h, err := mp.Meter(instrumentationName).Float64Histogram(
		"db.client.duration",
		metric.WithDescription("Duration of SQL statements."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("storefront/db: create histogram: %w", err)
	}
	return &otelCollector{duration: h, system: system}, nil
}

func (c *otelCollector) RecordQuery(ctx context.Context, query string, d time.Duration, success bool) {
	c.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("db.system", c.system),
		attribute.String("db.operation", statementKind(query)),
		attribute.Bool("success", success),
	))
}

// SystemName maps a database/sql driver name to the OpenTelemetry
// db.system value.
func SystemName(driverName string) string {
	switch driverName {
	case "postgres", "pgx":
		return "postgresql"
	case "sqlite3":
		return "sqlite"
	default:
		return driverName
	}
}
