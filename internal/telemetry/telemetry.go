// Package telemetry 负责日志（slog）、链路追踪与指标（OpenTelemetry）的初始化。
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// LogOptions 描述 slog handler。
type LogOptions struct {
	Level  string // debug|info|warn|error
	Format string // text|json
}

// ParseLevel 把配置中的日志级别转换为 slog.Level；空串视为 info。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("未知日志级别：%q", s)
	}
}

// NewLogger 按 opts 构造 logger；w 通常是 stderr。
func NewLogger(w io.Writer, opts LogOptions) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, ho)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	default:
		return nil, fmt.Errorf("未知日志格式：%q", opts.Format)
	}
}

// InitSlog 构造 logger 并设置为全局默认。
func InitSlog(w io.Writer, opts LogOptions) error {
	logger, err := NewLogger(w, opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// TraceOptions 描述 OTLP 导出。Endpoint 为空时不安装 provider（全局 no-op）。
// Endpoint 是 OTLP/HTTP 的基地址，traces 与 metrics 分别发往其下的 /v1/traces 与 /v1/metrics。
type TraceOptions struct {
	ServiceName string
	Endpoint    string // 例如 http://localhost:4318
	Headers     map[string]string
}

// Telemetry 持有已安装的 provider，进程退出前调用 Shutdown 刷新缓冲的 span 与指标。
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.ForceFlush(ctx), t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Setup 安装全局 TracerProvider 与 MeterProvider。
func Setup(ctx context.Context, opts TraceOptions) (Telemetry, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		slog.Debug("未配置 OTLP endpoint，跳过 telemetry 初始化")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return Telemetry{}, err
	}

	tracesURL := SignalURL(opts.Endpoint, "traces")
	traceExporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(tracesURL),
		otlptracehttp.WithHeaders(opts.Headers),
	)
	if err != nil {
		return Telemetry{}, fmt.Errorf("初始化 OTLP trace exporter 失败：%w", err)
	}
	slog.Info("tracer exporter 已初始化", "type", "http", "endpoint", tracesURL, "headers", len(opts.Headers) > 0)

	metricsURL := SignalURL(opts.Endpoint, "metrics")
	metricExporter, err := otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(metricsURL),
		otlpmetrichttp.WithHeaders(opts.Headers),
	)
	if err != nil {
		return Telemetry{}, fmt.Errorf("初始化 OTLP metric exporter 失败：%w", err)
	}
	slog.Info("metric exporter 已初始化", "type", "http", "endpoint", metricsURL, "headers", len(opts.Headers) > 0)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(5*time.Second))),
		sdkmetric.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return Telemetry{TracerProvider: tp, MeterProvider: mp}, nil
}

// SignalURL 把 OTLP 基地址补全为某个信号（traces/metrics）的导出地址。
// 已经以 /v1/<signal> 结尾的地址原样返回。
func SignalURL(endpoint, signal string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	suffix := "/v1/" + signal
	if strings.HasSuffix(base, suffix) {
		return base
	}
	return base + suffix
}
