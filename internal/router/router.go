package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"CoParent/internal/handler"
	"CoParent/internal/middleware"
)

// Options 可选的中间件，未设置时跳过
type Options struct {
	// Tracing 由 hertztracing 生成的服务端中间件
	Tracing app.HandlerFunc
	// AnswerLimiter 作答接口的限流器
	AnswerLimiter middleware.Limiter
}

func Register(h *server.Hertz, opts Options) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	if opts.Tracing != nil {
		h.Use(opts.Tracing)
	}
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := h.Group("/v1")

	onboarding := v1.Group("/onboarding", middleware.ResumeCookieMiddleware())
	{
		onboarding.GET("/question", handler.GetNextQuestion)
		onboarding.GET("/progress", handler.GetOnboardingProgress)

		answers := onboarding.Group("/answers")
		if opts.AnswerLimiter != nil {
			answers.Use(middleware.RateLimitMiddleware(opts.AnswerLimiter))
		}
		answers.POST("", handler.SubmitAnswer)
		answers.PUT("/:question_key", handler.ReviseAnswer)
	}
}
