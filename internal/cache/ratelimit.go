package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	ri "github.com/redis/go-redis/v9"

	"CoParent/storage/redis"
)

// SlidingWindow 基于 zset 的滑动窗口计数
type SlidingWindow struct {
	client ri.Cmdable
	prefix string
	window time.Duration
	limit  int
	now    func() time.Time
}

func NewSlidingWindow(client ri.Cmdable, prefix string, window time.Duration, limit int) *SlidingWindow {
	return &SlidingWindow{
		client: client,
		prefix: prefix,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

func (w *SlidingWindow) Limit() int { return w.limit }

func (w *SlidingWindow) Window() time.Duration { return w.window }

// Allow 记录一次请求并返回窗口内的请求数
func (w *SlidingWindow) Allow(ctx context.Context, identifier string) (bool, int, error) {
	key := redis.Key(w.prefix, identifier)
	now := w.now()
	windowStart := now.Add(-w.window)

	var count int64
	err := RedisBreaker.Call(ctx, func() error {
		pipe := w.client.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
		pipe.ZAdd(ctx, key, ri.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
		card := pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, w.window+10*time.Second)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to execute rate limit pipeline: %w", err)
		}
		count = card.Val()
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return int(count) <= w.limit, int(count), nil
}
