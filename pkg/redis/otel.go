package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const maxTracedKeys = 5

var (
	redisCommandsTotal   metric.Int64Counter
	redisCommandDuration metric.Float64Histogram
)

// InitRedisMetrics 初始化 Redis 指标
func InitRedisMetrics(meter metric.Meter) error {
	var err error

	redisCommandsTotal, err = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	redisCommandDuration, err = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	return err
}

// TracingHook 为每条命令创建 span，只记录命令名和键名，不记录值
type TracingHook struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func NewTracingHook(serviceName string, db int) *TracingHook {
	return &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
	}
}

func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis."+cmd.Name(),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(semconv.DBOperation(cmd.Name()))
		if keys := extractKeys(cmd.Args()); len(keys) > 0 {
			span.SetAttributes(attribute.StringSlice("redis.keys", keys))
		}

		start := time.Now()
		err := next(ctx, cmd)
		status := commandStatus(err)
		if status == "error" {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		record(ctx, cmd.Name(), status, time.Since(start))
		return err
	}
}

func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}
		span.SetAttributes(
			attribute.Int("redis.pipeline.count", len(cmds)),
			attribute.String("redis.pipeline.commands", strings.Join(names, ",")),
		)

		start := time.Now()
		err := next(ctx, cmds)
		status := commandStatus(err)
		if status == "error" {
			span.SetStatus(codes.Error, err.Error())
		}

		record(ctx, "pipeline", status, time.Since(start))
		return err
	}
}

func commandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "not_found"
	default:
		return "error"
	}
}

func record(ctx context.Context, command, status string, d time.Duration) {
	if redisCommandsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("redis.command", command),
		attribute.String("redis.status", status),
	)
	redisCommandsTotal.Add(ctx, 1, attrs)
	redisCommandDuration.Record(ctx, d.Seconds(), attrs)
}

// extractKeys 取命令名之后的第一个参数作为键，多键命令取前几个
func extractKeys(args []interface{}) []string {
	if len(args) < 2 {
		return nil
	}
	name, _ := args[0].(string)
	switch strings.ToLower(name) {
	case "del", "exists", "mget", "unlink":
	default:
		args = args[:2]
	}

	keys := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if len(keys) == maxTracedKeys {
			break
		}
		if key, ok := a.(string); ok {
			keys = append(keys, sanitizeKey(key))
		}
	}
	return keys
}

// sanitizeKey 会话与邮箱相关的键只保留前缀
func sanitizeKey(key string) string {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "session") || strings.Contains(lower, "email") || strings.Contains(lower, "secret") {
		if i := strings.LastIndex(key, ":"); i > 0 {
			return key[:i] + ":***"
		}
		return "***"
	}
	if len(key) > 100 {
		return key[:100] + "..."
	}
	return key
}

// InstrumentRedisClient 为客户端挂上追踪 Hook
func InstrumentRedisClient(client *redis.Client, serviceName string, db int) {
	client.AddHook(NewTracingHook(serviceName, db))
}
