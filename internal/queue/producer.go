package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"CoParent/internal/model"
	"CoParent/pkg/logger"
	"CoParent/pkg/snowflake"
	"CoParent/storage/mq"
)

type publishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// Publisher 把引导完成事件投递到 onboarding.topic
type Publisher struct {
	publish publishFunc
}

func NewPublisher() *Publisher {
	return &Publisher{publish: mq.PublishMessage}
}

// PublishOnboardingCompleted 发布引导完成消息，MessageID 为空时补一个
func (p *Publisher) PublishOnboardingCompleted(ctx context.Context, msg *model.OnboardingCompletedMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextMessageID("onb_done")
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = id
	}

	if err := p.publish(ctx, mq.OnboardingExchange, mq.OnboardingCompletedKey, msg.MessageID, msg); err != nil {
		logger.Logger.Error("Failed to publish onboarding completed message",
			logger.MessageID(msg.MessageID),
			logger.SessionID(msg.SessionID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published onboarding completed message",
		logger.MessageID(msg.MessageID),
		logger.SessionID(msg.SessionID),
		zap.Int64("user_public_id", msg.UserPublicID),
	)
	return nil
}
