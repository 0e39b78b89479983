package cache

import (
	"context"
	"time"

	ri "github.com/redis/go-redis/v9"

	"CoParent/storage/redis"
)

// 消费端幂等标记：processing 表示有消费者正在处理，done 表示已处理完成
const (
	messageMarkPrefix = "mq:processed"
	markProcessing    = "processing"
	markDone          = "done"
)

// MessageMarks 基于 SETNX 的消息去重标记
type MessageMarks struct {
	client ri.Cmdable
}

// NewMessageMarks 使用全局 Redis 客户端
func NewMessageMarks() *MessageMarks {
	return &MessageMarks{client: redis.Client()}
}

func NewMessageMarksWithClient(client ri.Cmdable) *MessageMarks {
	return &MessageMarks{client: client}
}

// TryMarkProcessing 原子地占用消息；返回 false 表示已被处理或正在处理
func (m *MessageMarks) TryMarkProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	var ok bool
	err := RedisBreaker.Call(ctx, func() error {
		var err error
		ok, err = m.client.SetNX(ctx, redis.Key(messageMarkPrefix, messageID), markProcessing, ttl).Result()
		return err
	})
	return ok, err
}

// MarkProcessed 处理完成后延长标记有效期
func (m *MessageMarks) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	return RedisBreaker.Call(ctx, func() error {
		return m.client.Set(ctx, redis.Key(messageMarkPrefix, messageID), markDone, ttl).Err()
	})
}

// Unmark 处理失败时释放标记，允许重新投递后再次处理
func (m *MessageMarks) Unmark(ctx context.Context, messageID string) error {
	return RedisBreaker.Call(ctx, func() error {
		return m.client.Del(ctx, redis.Key(messageMarkPrefix, messageID)).Err()
	})
}
