package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CoParent/config"
	pkgerrors "CoParent/pkg/errors"
	"CoParent/pkg/logger"
	mqotel "CoParent/pkg/mq"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 结束或 channel 关闭。
// handler 返回 SkipMessageError 时确认消息，其他错误重新入队。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return pkgerrors.ErrMQConnectionNil
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info("Stopping consumer",
				zap.String("queue", opts.Queue),
				zap.String("consumer_tag", opts.ConsumerTag),
			)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", opts.Queue)
			}
			handleDelivery(ctx, opts, msg)
		}
	}
}

func handleDelivery(ctx context.Context, opts ConsumeOptions, msg amqp.Delivery) {
	start := time.Now()
	msgCtx, span := mqotel.StartProcessSpan(ctx, config.Cfg.ServiceName, opts.Queue, msg)

	err := opts.Handler(msgCtx, msg.Body)
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case pkgerrors.IsSkipMessageError(err):
		logger.Logger.Info("Message skipped",
			zap.String("queue", opts.Queue),
			logger.MessageID(msg.MessageId),
			zap.String("reason", err.Error()),
		)
		_ = msg.Ack(false)
		err = nil
	default:
		logger.Logger.Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("consumer_tag", opts.ConsumerTag),
			logger.MessageID(msg.MessageId),
			zap.Error(err),
		)
		_ = msg.Nack(false, true)
	}

	mqotel.FinishSpan(msgCtx, span, "process", msg.RoutingKey, start, err)
}
