package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"CoParent/pkg/errors"
	"CoParent/pkg/logger"
	"CoParent/pkg/response"
)

// Limiter 计数窗口，Allow 返回是否放行与窗口内已用次数
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, int, error)
	Limit() int
	Window() time.Duration
}

// RateLimitMiddleware 按客户端 IP 限流。
// 计数存储不可用时放行请求，只记录告警。
func RateLimitMiddleware(limiter Limiter) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		allowed, count, err := limiter.Allow(ctx, "ip:"+c.ClientIP())
		if err != nil {
			logger.Logger.Warn("Rate limiter unavailable, letting request through",
				zap.String("path", string(c.Path())),
				zap.Error(err),
			)
			c.Next(ctx)
			return
		}

		remaining := limiter.Limit() - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limiter.Window()).Unix(), 10))

		if !allowed {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
