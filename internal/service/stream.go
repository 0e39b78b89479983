package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	"CoParent/pkg/logger"
	"CoParent/pkg/metrics"
)

// ErrClientGone 客户端在流式下发过程中断开
var ErrClientGone = errors.New("client disconnected during stream")

// streamErrorMessage 流中途失败时给前端的提示，fallback 携带原始问题文案
const streamErrorMessage = "We could not finish phrasing this question."

// QuestionView 转换为下发结构
func QuestionView(q *catalog.Question) *model.QuestionView {
	if q == nil {
		return nil
	}
	return &model.QuestionView{
		Key:      q.Key,
		Prompt:   q.Prompt,
		Options:  append([]string(nil), q.Options...),
		Required: q.Required,
	}
}

// StreamQuestion 把 NextQuestion 的结果以事件序列下发：
// start -> chunk* -> complete，措辞中途失败时以 error 结束。
// 只读操作，不会修改会话；emit 失败视为客户端断开，返回 ErrClientGone。
func (s *OnboardingService) StreamQuestion(ctx context.Context, res *NextQuestionResult, emit func(model.StreamEvent) error) error {
	started := time.Now()
	outcome := "complete"
	defer func() {
		metrics.GetMetrics().RecordStream(ctx, s.phraser.Name(), outcome, time.Since(started).Seconds())
	}()

	send := func(ev model.StreamEvent) error {
		if err := emit(ev); err != nil {
			return errors.Join(ErrClientGone, err)
		}
		return nil
	}

	err := send(model.StreamEvent{
		Type:      model.StreamEventStart,
		SessionID: res.SessionID,
		Question:  QuestionView(res.Question),
		IsResumed: res.Resumed,
	})

	if err == nil && res.Question != nil && !res.Completed {
		err = s.phraser.Phrase(ctx, *res.Question, func(chunk string) error {
			return send(model.StreamEvent{Type: model.StreamEventChunk, Content: chunk})
		})
	}

	switch {
	case errors.Is(err, ErrClientGone), errors.Is(ctx.Err(), context.Canceled):
		outcome = "client_gone"
		s.log.Debug("Client left during question stream",
			logger.SessionID(res.SessionID),
			zap.Error(err),
		)
		return ErrClientGone
	case err != nil:
		outcome = "error"
		s.log.Warn("Question stream failed",
			logger.SessionID(res.SessionID),
			zap.Error(err),
		)
		fallback := ""
		if res.Question != nil {
			fallback = res.Question.Prompt
		}
		if sendErr := send(model.StreamEvent{
			Type:     model.StreamEventError,
			Message:  streamErrorMessage,
			Fallback: fallback,
		}); sendErr != nil {
			outcome = "client_gone"
			return ErrClientGone
		}
		return nil
	}

	if err := send(model.StreamEvent{
		Type:      model.StreamEventComplete,
		Question:  QuestionView(res.Question),
		Completed: res.Completed,
	}); err != nil {
		outcome = "client_gone"
		return ErrClientGone
	}
	return nil
}
