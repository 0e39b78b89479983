package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"CoParent/config"
	"CoParent/pkg/errors"
	"CoParent/pkg/logger"
	"CoParent/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	EnableStackTrace bool
	// 生产环境是否返回 panic 详情
	ExposeDetails bool
	// 请求体小于该长度时记录到日志；引导接口的请求体包含邮箱，默认不记录
	LogBodyLimit int
	// 严重错误回调，可用于告警
	OnSevereError func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte)
}

func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		EnableStackTrace: true,
		ExposeDetails:    !config.Cfg.IsProduction(),
	}
}

func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	var stack []byte
	if cfg.EnableStackTrace {
		stack = debug.Stack()
	}

	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", requestID(c)),
	}
	if sid := c.Query("session_id"); sid != "" {
		fields = append(fields, logger.SessionID(sid))
	}
	if body := c.Request.Body(); cfg.LogBodyLimit > 0 && len(body) > 0 && len(body) < cfg.LogBodyLimit {
		fields = append(fields, zap.ByteString("body", body))
	}
	if len(stack) > 0 {
		fields = append(fields, zap.String("stack", trimRuntimeFrames(string(stack))))
	}
	logger.Logger.Error("[PANIC RECOVERED]", fields...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(fmt.Errorf("panic: %v", err), trace.WithStackTrace(false))
		span.SetStatus(codes.Error, "panic recovered")
	}

	if cfg.OnSevereError != nil {
		cfg.OnSevereError(ctx, c, err, stack)
	}

	c.Abort()
	if !cfg.ExposeDetails {
		response.Error(ctx, c, errors.InternalError)
		return
	}
	details := map[string]interface{}{
		"panic":     fmt.Sprintf("%v", err),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	response.ErrorWithDetails(ctx, c, errors.InternalError, details)
}

func requestID(c *app.RequestContext) string {
	if id := c.GetHeader("X-Request-ID"); len(id) > 0 {
		return string(id)
	}
	return string(c.GetHeader("X-Trace-ID"))
}

// trimRuntimeFrames 去掉 runtime 包内的栈帧，只保留业务调用链
func trimRuntimeFrames(stack string) string {
	lines := strings.Split(stack, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "runtime/") || strings.HasPrefix(line, "panic(") {
			i++ // 跳过对应的文件行
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
