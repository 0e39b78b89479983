package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"CoParent/config"
	"CoParent/internal/cache"
	"CoParent/internal/queue"
	"CoParent/pkg/logger"
	"CoParent/pkg/mailer"
	"CoParent/pkg/metrics"
	mqotel "CoParent/pkg/mq"
	"CoParent/pkg/otel"
	redisotel "CoParent/pkg/redis"
	"CoParent/storage"
)

// 消费者异常退出后的重连间隔
const reconnectDelay = 5 * time.Second

func main() {
	logger.Init()
	defer logger.Sync()

	cfg := config.Cfg

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if cfg.OTelEnabled {
		shutdown, err := otel.Setup(ctx, otel.Config{
			ServiceName:    cfg.ServiceName + "-worker",
			ServiceVersion: cfg.ServiceVersion,
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTelEndpoint,
			SampleRatio:    cfg.OTelSampleRatio,
		},
			func(metric.Meter) error { return metrics.InitMetrics() },
			redisotel.InitRedisMetrics,
			mqotel.InitMQMetrics,
		)
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	if err := storage.Init(storage.Redis | storage.MQ); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := mailer.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize mailer", zap.Error(err))
	}

	h := queue.NewCompletedHandler(cache.NewMessageMarks(), mailer.GetClient(), cfg.MailMaxRetries)

	logger.Logger.Info("Worker service starting",
		zap.String("service", cfg.ServiceName+"-worker"),
		zap.String("environment", cfg.Environment),
		zap.String("mailer", cfg.MailerProvider),
	)

	for {
		err := queue.StartOnboardingCompletedConsumer(ctx, h)
		if ctx.Err() != nil {
			break
		}
		logger.Logger.Error("Consumer stopped unexpectedly, restarting",
			zap.Duration("delay", reconnectDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
