package xstats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xjcache/pkg/cache/xstats"

	metricOperationTotal    = "xjcache.operation.total"
	metricOperationDuration = "xjcache.operation.duration"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// OTelOption 配置 OpenTelemetry Recorder。
type OTelOption func(*otelConfig)

// WithInstrumentationName 设置 instrumentation 名称，空字符串被忽略。
func WithInstrumentationName(name string) OTelOption {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，默认全局 provider。
func WithTracerProvider(provider trace.TracerProvider) OTelOption {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认全局 provider。
func WithMeterProvider(provider metric.MeterProvider) OTelOption {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelRecorder 创建基于 OpenTelemetry 的 Recorder，cacheName 作为 cache 属性。
func NewOTelRecorder(cacheName string, opts ...OTelOption) (Recorder, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	total, err := meter.Int64Counter(
		metricOperationTotal,
		metric.WithDescription("total cache operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xstats: create counter failed: %w", err)
	}
	duration, err := meter.Float64Histogram(
		metricOperationDuration,
		metric.WithDescription("cache operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("xstats: create histogram failed: %w", err)
	}

	return &otelRecorder{
		cache:    cacheName,
		tracer:   cfg.tracerProvider.Tracer(cfg.instrumentationName),
		total:    total,
		duration: duration,
	}, nil
}

type otelRecorder struct {
	cache    string
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (r *otelRecorder) Start(ctx context.Context, op Op) (context.Context, Span) {
	ctx, span := r.tracer.Start(ctx, "xjcache."+string(op),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache", r.cache),
			attribute.String("operation", string(op)),
		),
	)
	return ctx, &otelSpan{recorder: r, span: span, ctx: ctx, op: op, start: time.Now()}
}

type otelSpan struct {
	recorder *otelRecorder
	span     trace.Span
	ctx      context.Context
	op       Op
	start    time.Time
	endOnce  sync.Once
}

// End 记录结果。重复调用只生效一次。
func (s *otelSpan) End(outcome Outcome, err error) {
	s.endOnce.Do(func() {
		if err != nil {
			outcome = OutcomeError
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		s.span.SetAttributes(attribute.String("outcome", string(outcome)))
		s.span.End()

		// 调用方 ctx 已取消时仍记录指标
		ctx := context.WithoutCancel(s.ctx)
		attrs := metric.WithAttributes(
			attribute.String("cache", s.recorder.cache),
			attribute.String("operation", string(s.op)),
			attribute.String("outcome", string(outcome)),
		)
		s.recorder.total.Add(ctx, 1, attrs)
		s.recorder.duration.Record(ctx, time.Since(s.start).Seconds(), attrs)
	})
}
