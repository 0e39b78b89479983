package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CoParent/pkg/logger"
	"CoParent/storage/database"
	"CoParent/storage/mq"
	"CoParent/storage/redis"
)

// Close 按 MQ -> Redis -> Database 的顺序关闭连接，未初始化的组件直接跳过
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := mq.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close message queue", zap.Error(err))
	}

	if err := redis.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
	}

	if err := database.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	logger.Logger.Info("All storage connections closed")
}
