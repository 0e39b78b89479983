package middleware

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"CoParent/pkg/logger"
)

// Init 初始化需要 meter 的中间件
func Init(meter metric.Meter) error {
	if err := InitMetrics(meter); err != nil {
		logger.Logger.Error("Failed to initialize HTTP metrics", zap.Error(err))
		return err
	}

	logger.Logger.Info("Middlewares initialized")
	return nil
}
