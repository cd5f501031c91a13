package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BuildInfo 描述当前二进制；字段通常由 -ldflags 注入。
type BuildInfo struct {
	Version string
	BuiltAt string // RFC 3339；为空或无法解析时 built_at 指标不上报
}

// RegisterBuildInfo 注册两个常量 gauge：
//
//	playproxy.app.info      恒为 1，属性携带 version 与 built_at
//	playproxy.app.built_at  构建时间的 unix 秒
func RegisterBuildInfo(mp metric.MeterProvider, info BuildInfo) error {
	m := mp.Meter("playproxy")

	version := strings.TrimSpace(info.Version)
	if version == "" {
		version = "dev"
	}
	attrs := metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("built_at", info.BuiltAt),
	)

	if _, err := m.Int64ObservableGauge(
		"playproxy.app.info",
		metric.WithDescription("Build information of the running binary."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(1, attrs)
			return nil
		}),
	); err != nil {
		return err
	}

	builtAt, err := time.Parse(time.RFC3339, strings.TrimSpace(info.BuiltAt))
	if err != nil {
		return nil
	}
	_, err = m.Int64ObservableGauge(
		"playproxy.app.built_at",
		metric.WithDescription("Build timestamp of the running binary."),
		metric.WithUnit("s"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(builtAt.Unix(), metric.WithAttributes(attribute.String("version", version)))
			return nil
		}),
	)
	return err
}
