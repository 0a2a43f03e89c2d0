// Package tracing 初始化全局 TracerProvider。
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/go-gotop/subscribe/conf"
)

const (
	ExporterStdout   = "stdout"
	ExporterOtlpGrpc = "otlpgrpc"
	ExporterOtlpHttp = "otlphttp"
	ExporterZipkin   = "zipkin"
)

var ErrUnknownExporter = errors.New("unknown trace exporter")

// Shutdown 刷新并关闭 exporter
type Shutdown func(ctx context.Context) error

type options struct {
	stdout io.Writer
}

type Option func(*options)

// WithStdoutWriter stdout exporter 的输出，默认 os.Stdout
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) {
		o.stdout = w
	}
}

func newExporter(ctx context.Context, c conf.Trace, o *options) (sdktrace.SpanExporter, error) {
	switch c.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(o.stdout))
	case ExporterOtlpGrpc:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case ExporterOtlpHttp:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	case ExporterZipkin:
		return zipkin.New(c.Endpoint)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, c.Exporter)
	}
}

// NewTracerProvider Exporter 为空时返回 nil provider 与空 Shutdown，
// 全局仍是 otel 默认的 noop 实现。
func NewTracerProvider(ctx context.Context, c conf.Trace, service string, opts ...Option) (*sdktrace.TracerProvider, Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if c.Exporter == "" {
		return nil, noop, nil
	}

	o := &options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	exp, err := newExporter(ctx, c, o)
	if err != nil {
		return nil, noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}
