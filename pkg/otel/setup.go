package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Instrument 在全局 MeterProvider 就绪后创建各组件的指标
type Instrument func(meter metric.Meter) error

// Setup 初始化 OpenTelemetry 并依次注册组件指标
func Setup(ctx context.Context, cfg Config, instruments ...Instrument) (func(context.Context) error, error) {
	shutdown, err := InitOpenTelemetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(cfg.ServiceName)
	for _, inst := range instruments {
		if err := inst(meter); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("failed to register instruments: %w", err)
		}
	}
	return shutdown, nil
}
