package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpServerRequestTotal   metric.Int64Counter
	httpServerDuration       metric.Float64Histogram
	httpServerActiveRequests metric.Int64UpDownCounter
)

// toValidUTF8 清洗用户可控字符串，非法 UTF-8 会导致指标导出失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// InitMetrics 初始化 HTTP 指标
func InitMetrics(meter metric.Meter) error {
	var err error

	httpServerRequestTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	httpServerDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return err
	}

	httpServerActiveRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests, SSE streams included"),
		metric.WithUnit("{request}"),
	)
	return err
}

// OpenTelemetryMiddleware 补充路由级属性与 HTTP 指标，span 由 hertztracing 的服务端中间件创建
func OpenTelemetryMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if httpServerRequestTotal == nil {
			c.Next(ctx)
			return
		}

		start := time.Now()
		method := toValidUTF8(string(c.Method()))
		route := toValidUTF8(c.FullPath())

		httpServerActiveRequests.Add(ctx, 1)
		defer httpServerActiveRequests.Add(ctx, -1)

		span := trace.SpanFromContext(ctx)
		if sid := c.Query("session_id"); sid != "" {
			span.SetAttributes(attribute.String("onboarding.session_id", toValidUTF8(sid)))
		}
		if rid := c.GetHeader("X-Request-Id"); len(rid) > 0 {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(string(rid))))
		}

		c.Next(ctx)

		status := c.Response.StatusCode()
		if status >= 500 {
			span.SetStatus(codes.Error, "HTTP error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		}

		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(status),
		)
		httpServerRequestTotal.Add(ctx, 1, attrs)
		httpServerDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// NewServerTracerConfig 返回 Hertz server 的追踪选项和配套中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
