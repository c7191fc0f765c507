package db_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skryldev/storefront/db"
)

func openWithHooks(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	cfg := testConfig(t, hooks...)
	if err := db.MigrateUp(cfg, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	d, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestOTelTracer_SpanPerStatement(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d := openWithHooks(t, db.NewTracingHook(db.NewOTelTracer(tp, db.SystemName("sqlite3"))))
	ctx := context.Background()

	insertProduct(t, d, "Pen", "1.50")
	var name string
	if err := d.QueryRow(ctx, `SELECT name FROM products WHERE id = $1`, 1).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "db.INSERT" || spans[1].Name() != "db.SELECT" {
		t.Errorf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
	for _, s := range spans {
		if s.SpanKind() != trace.SpanKindClient {
			t.Errorf("%s: kind = %v, want client", s.Name(), s.SpanKind())
		}
		if got := spanAttr(s, "db.system"); got != "sqlite" {
			t.Errorf("%s: db.system = %q", s.Name(), got)
		}
		if s.Status().Code == codes.Error {
			t.Errorf("%s: unexpected error status", s.Name())
		}
	}
	if got := spanAttr(spans[1], "db.statement"); got != "SELECT name FROM products WHERE id = $1" {
		t.Errorf("db.statement = %q", got)
	}
}

func TestOTelTracer_RecordsFailures(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d := openWithHooks(t, db.NewTracingHook(db.NewOTelTracer(tp, "sqlite")))
	ctx := context.Background()

	_, _ = d.Exec(ctx, `SELECT * FROM no_such_table`)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
}

func TestOTelCollector_RecordsDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	collector, err := db.NewOTelCollector(mp, "sqlite")
	if err != nil {
		t.Fatalf("collector: %v", err)
	}
	d := openWithHooks(t, db.NewMetricsHook(collector))

	insertProduct(t, d, "Pen", "1.50")
	insertProduct(t, d, "Notebook", "3.25")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "db.client.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range hist.DataPoints {
				op, _ := dp.Attributes.Value("db.operation")
				if op.AsString() == "INSERT" {
					count += dp.Count
				}
			}
		}
	}
	if count != 2 {
		t.Errorf("recorded %d INSERT observations, want 2", count)
	}
}

func TestSystemName(t *testing.T) {
	cases := []struct{ driver, want string }{
		{"postgres", "postgresql"},
		{"pgx", "postgresql"},
		{"sqlite3", "sqlite"},
		{"mysql", "mysql"},
	}
	for _, c := range cases {
		if got := db.SystemName(c.driver); got != c.want {
			t.Errorf("SystemName(%q) = %q, want %q", c.driver, got, c.want)
		}
	}
}
