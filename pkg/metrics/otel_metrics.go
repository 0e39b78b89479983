package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
//
// 所有 Record 方法都允许 nil 接收者，未初始化（测试、OTEL 关闭）时为空操作。
type OTelMetrics struct {
	// 引导流程
	OnboardingSessionsStarted   metric.Int64Counter
	OnboardingAnswersTotal      metric.Int64Counter
	OnboardingCompletedTotal    metric.Int64Counter
	OnboardingSideEffectFailure metric.Int64Counter
	OnboardingStreamsTotal      metric.Int64Counter
	OnboardingStreamDuration    metric.Float64Histogram

	// 邮件
	MailSentTotal    metric.Int64Counter
	MailSendDuration metric.Float64Histogram
	MailRetryTotal   metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("coparent")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	m := &OTelMetrics{}
	var err error

	if m.OnboardingSessionsStarted, err = meter.Int64Counter(
		"onboarding_sessions_started_total",
		metric.WithDescription("Onboarding sessions created"),
		metric.WithUnit("{session}"),
	); err != nil {
		return err
	}

	if m.OnboardingAnswersTotal, err = meter.Int64Counter(
		"onboarding_answers_total",
		metric.WithDescription("Submitted onboarding answers by outcome"),
		metric.WithUnit("{answer}"),
	); err != nil {
		return err
	}

	if m.OnboardingCompletedTotal, err = meter.Int64Counter(
		"onboarding_completed_total",
		metric.WithDescription("Onboarding sessions that reached completion"),
		metric.WithUnit("{session}"),
	); err != nil {
		return err
	}

	if m.OnboardingSideEffectFailure, err = meter.Int64Counter(
		"onboarding_side_effect_failures_total",
		metric.WithDescription("Completion side effect steps that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if m.OnboardingStreamsTotal, err = meter.Int64Counter(
		"onboarding_streams_total",
		metric.WithDescription("Question streams by outcome"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return err
	}

	if m.OnboardingStreamDuration, err = meter.Float64Histogram(
		"onboarding_stream_duration_seconds",
		metric.WithDescription("Time spent streaming a question"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if m.MailSentTotal, err = meter.Int64Counter(
		"mail_sent_total",
		metric.WithDescription("Total number of e-mails sent"),
		metric.WithUnit("{mail}"),
	); err != nil {
		return err
	}

	if m.MailSendDuration, err = meter.Float64Histogram(
		"mail_send_duration_seconds",
		metric.WithDescription("Time spent sending e-mail in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if m.MailRetryTotal, err = meter.Int64Counter(
		"mail_retry_total",
		metric.WithDescription("Total number of e-mail retry attempts"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，未初始化时为 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

func (m *OTelMetrics) RecordSessionStarted(ctx context.Context, restarted bool) {
	if m == nil {
		return
	}
	m.OnboardingSessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("restarted", restarted)))
}

// RecordAnswer outcome 为 accepted、skipped、revised 或错误码
func (m *OTelMetrics) RecordAnswer(ctx context.Context, questionKey, outcome string) {
	if m == nil {
		return
	}
	m.OnboardingAnswersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("question_key", questionKey),
		attribute.String("outcome", outcome),
	))
}

func (m *OTelMetrics) RecordCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.OnboardingCompletedTotal.Add(ctx, 1)
}

func (m *OTelMetrics) RecordSideEffectFailure(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.OnboardingSideEffectFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// RecordStream outcome 为 complete、error、client_gone
func (m *OTelMetrics) RecordStream(ctx context.Context, phraser, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("phraser", phraser),
		attribute.String("outcome", outcome),
	)
	m.OnboardingStreamsTotal.Add(ctx, 1, attrs)
	m.OnboardingStreamDuration.Record(ctx, seconds, attrs)
}

// RecordMailSent 记录邮件发送结果
func (m *OTelMetrics) RecordMailSent(ctx context.Context, template, provider string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	m.MailSentTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	m.MailSendDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("provider", provider),
	))
}

func (m *OTelMetrics) RecordMailRetry(ctx context.Context, template string) {
	if m == nil {
		return
	}
	m.MailRetryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("template", template)))
}
