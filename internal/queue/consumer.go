package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
	"CoParent/pkg/logger"
	"CoParent/pkg/mailer"
	"CoParent/pkg/metrics"
	"CoParent/storage/mq"
)

const (
	processingMarkTTL = 24 * time.Hour
	processedMarkTTL  = 48 * time.Hour
)

// MessageMarker 消息幂等标记
type MessageMarker interface {
	TryMarkProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error
	Unmark(ctx context.Context, messageID string) error
}

// CompletedHandler 消费引导完成消息并发送欢迎邮件
type CompletedHandler struct {
	marks    MessageMarker
	mail     mailer.Client
	maxTries uint
	// newBackOff 每条消息新建一个退避器
	newBackOff func() backoff.BackOff
}

func NewCompletedHandler(marks MessageMarker, mail mailer.Client, maxTries int) *CompletedHandler {
	if maxTries < 1 {
		maxTries = 1
	}
	return &CompletedHandler{
		marks:    marks,
		mail:     mail,
		maxTries: uint(maxTries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// Handle 返回 SkipMessageError 时消息被确认，其他错误触发重新入队
func (h *CompletedHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.OnboardingCompletedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Logger.Error("Dropping malformed onboarding completed message", zap.Error(err))
		return &pkgerrors.SkipMessageError{Reason: "malformed body"}
	}
	if msg.MessageID == "" || msg.Email == "" {
		logger.Logger.Error("Dropping onboarding completed message without id or email",
			logger.SessionID(msg.SessionID),
		)
		return &pkgerrors.SkipMessageError{Reason: "missing message id or email"}
	}

	claimed, err := h.marks.TryMarkProcessing(ctx, msg.MessageID, processingMarkTTL)
	if err != nil {
		// 标记不可用时继续处理，宁可重复发信也不丢信
		logger.Logger.Warn("Failed to check message processed status",
			logger.MessageID(msg.MessageID),
			zap.Error(err),
		)
	} else if !claimed {
		return &pkgerrors.SkipMessageError{Reason: fmt.Sprintf("message %s already processed", msg.MessageID)}
	}

	logger.Logger.Info("Processing onboarding completed message",
		logger.MessageID(msg.MessageID),
		logger.SessionID(msg.SessionID),
		zap.String("to", mailer.MaskAddress(msg.Email)),
	)

	if err := h.sendWelcome(ctx, &msg); err != nil {
		var perm *mailer.PermanentError
		if errors.As(err, &perm) {
			logger.Logger.Error("Welcome mail permanently rejected",
				logger.MessageID(msg.MessageID),
				zap.Error(err),
			)
			h.markProcessed(ctx, msg.MessageID)
			return &pkgerrors.SkipMessageError{Reason: "mail permanently rejected"}
		}

		if uerr := h.marks.Unmark(ctx, msg.MessageID); uerr != nil {
			logger.Logger.Warn("Failed to release message mark",
				logger.MessageID(msg.MessageID),
				zap.Error(uerr),
			)
		}
		return fmt.Errorf("failed to send welcome mail: %w", err)
	}

	h.markProcessed(ctx, msg.MessageID)
	return nil
}

func (h *CompletedHandler) sendWelcome(ctx context.Context, msg *model.OnboardingCompletedMessage) error {
	mail := mailer.WelcomeMessage(msg.Email, msg.Name)
	m := metrics.GetMetrics()
	start := time.Now()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := h.mail.Send(ctx, mail)
		var perm *mailer.PermanentError
		if errors.As(err, &perm) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(h.newBackOff()),
		backoff.WithMaxTries(h.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.RecordMailRetry(ctx, mail.Template)
			logger.Logger.Warn("Welcome mail failed, retrying",
				logger.MessageID(msg.MessageID),
				zap.Duration("next_retry", next),
				zap.Error(err),
			)
		}),
	)

	m.RecordMailSent(ctx, mail.Template, h.mail.Provider(), err == nil, time.Since(start).Seconds())
	return err
}

func (h *CompletedHandler) markProcessed(ctx context.Context, messageID string) {
	if err := h.marks.MarkProcessed(ctx, messageID, processedMarkTTL); err != nil {
		logger.Logger.Warn("Failed to mark message as processed",
			logger.MessageID(messageID),
			zap.Error(err),
		)
	}
}

// StartOnboardingCompletedConsumer 阻塞消费直到 ctx 结束
func StartOnboardingCompletedConsumer(ctx context.Context, h *CompletedHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.OnboardingCompletedQueue,
		ConsumerTag:   "onboarding_completed_consumer",
		PrefetchCount: 10,
		Handler:       h.Handle,
	})
}
