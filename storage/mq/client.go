package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CoParent/config"
	"CoParent/pkg/logger"
)

// 引导完成事件的拓扑
const (
	OnboardingExchange       = "onboarding.topic"
	OnboardingCompletedQueue = "onboarding.completed"
	OnboardingCompletedKey   = "onboarding.completed"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立连接并声明交换机与队列，重复调用只生效一次
func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			connErr = fmt.Errorf("failed to dial RabbitMQ: %w", connErr)
			return
		}

		connErr = declareTopology(conn)
		if connErr != nil {
			_ = conn.Close()
			conn = nil
			return
		}

		logger.Logger.Info("RabbitMQ connected",
			zap.String("component", "rabbitmq"),
			zap.String("exchange", OnboardingExchange),
		)
	})
	return connErr
}

func declareTopology(c *amqp.Connection) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(OnboardingExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", OnboardingExchange, err)
	}
	if _, err := ch.QueueDeclare(OnboardingCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", OnboardingCompletedQueue, err)
	}
	if err := ch.QueueBind(OnboardingCompletedQueue, OnboardingCompletedKey, OnboardingExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", OnboardingCompletedQueue, err)
	}
	return nil
}

// Connection 返回当前连接，未初始化时为 nil
// TODO: 连接断开后重新 Dial，目前依赖 worker 进程重启恢复
func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil && !publisherCh.IsClosed() {
		_ = publisherCh.Close()
	}
	publisherCh = nil
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- conn.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
