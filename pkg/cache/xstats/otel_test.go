package xstats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProviders(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, *sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return tp, exporter, mp, reader
}

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func TestNewOTelRecorder_Default(t *testing.T) {
	r, err := NewOTelRecorder("users", WithInstrumentationName(""), WithMeterProvider(nil), WithTracerProvider(nil))
	require.NoError(t, err)
	_, span := r.Start(context.Background(), OpGet)
	span.End(OutcomeHit, nil)
}

func TestOTelRecorder_RecordsMetricsAndSpans(t *testing.T) {
	tp, exporter, mp, reader := newTestProviders(t)
	r, err := NewOTelRecorder("users", WithTracerProvider(tp), WithMeterProvider(mp))
	require.NoError(t, err)

	ctx := context.Background()
	_, span := r.Start(ctx, OpGet)
	span.End(OutcomeHit, nil)
	span.End(OutcomeHit, nil) // 重复 End 无效

	_, span = r.Start(ctx, OpPut)
	span.End(OutcomeOK, errors.New("writer down"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	sum := findSum(t, rm, metricOperationTotal)
	require.Len(t, sum.DataPoints, 2)

	byOp := map[string]metricdata.DataPoint[int64]{}
	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("operation"))
		byOp[op.AsString()] = dp
	}
	assert.Equal(t, int64(1), byOp["get"].Value)
	putAttrs := byOp["put"].Attributes
	outcome, _ := putAttrs.Value(attribute.Key("outcome"))
	assert.Equal(t, "error", outcome.AsString())
	getAttrs := byOp["get"].Attributes
	cache, _ := getAttrs.Value(attribute.Key("cache"))
	assert.Equal(t, "users", cache.AsString())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "xjcache.get", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestOTelRecorder_CancelledContextStillRecords(t *testing.T) {
	_, _, mp, reader := newTestProviders(t)
	r, err := NewOTelRecorder("users", WithMeterProvider(mp))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, span := r.Start(ctx, OpRemove)
	cancel()
	span.End(OutcomeOK, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sum := findSum(t, rm, metricOperationTotal)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}
