package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// RabbitMQ 相关指标，未初始化时不记录
	mqMessagesTotal   metric.Int64Counter
	mqMessageDuration metric.Float64Histogram
)

// InitMQMetrics 初始化 RabbitMQ 指标
func InitMQMetrics(meter metric.Meter) error {
	var err error

	mqMessagesTotal, err = meter.Int64Counter(
		"mq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	mqMessageDuration, err = meter.Float64Histogram(
		"mq.message.duration",
		metric.WithDescription("RabbitMQ publish and handling duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10),
	)
	return err
}

// HeaderCarrier 让 amqp.Table 充当 propagation.TextMapCarrier
type HeaderCarrier amqp.Table

func (h HeaderCarrier) Get(key string) string {
	if v, ok := h[key].(string); ok {
		return v
	}
	return ""
}

func (h HeaderCarrier) Set(key, value string) {
	h[key] = value
}

func (h HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

// InjectHeaders 把追踪上下文写入消息头，返回新的 Table
func InjectHeaders(ctx context.Context, headers amqp.Table) amqp.Table {
	out := make(amqp.Table, len(headers)+2)
	for k, v := range headers {
		out[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(out))
	return out
}

// ExtractContext 从消息头还原追踪上下文
func ExtractContext(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(headers))
}

// StartPublishSpan 发布端 span
func StartPublishSpan(ctx context.Context, serviceName, exchange, routingKey string) (context.Context, trace.Span) {
	return otel.Tracer(serviceName+".rabbitmq").Start(ctx, "rabbitmq.publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			attribute.String("messaging.rabbitmq.exchange", exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
		),
	)
}

// StartProcessSpan 消费端 span，父级为消息头中的追踪上下文
func StartProcessSpan(ctx context.Context, serviceName, queue string, d amqp.Delivery) (context.Context, trace.Span) {
	ctx = ExtractContext(ctx, d.Headers)
	return otel.Tracer(serviceName+".rabbitmq").Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingMessageID(d.MessageId),
			semconv.MessagingRabbitmqDestinationRoutingKey(d.RoutingKey),
		),
	)
}

// FinishSpan 结束 span 并记录指标；operation 为 publish 或 process
func FinishSpan(ctx context.Context, span trace.Span, operation, routingKey string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	if mqMessagesTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
		attribute.String("messaging.status", status),
	)
	mqMessagesTotal.Add(ctx, 1, attrs)
	mqMessageDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
