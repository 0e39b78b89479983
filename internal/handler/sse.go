package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/http1/resp"
	"go.uber.org/zap"

	"CoParent/config"
	"CoParent/internal/model"
	"CoParent/internal/service"
	"CoParent/pkg/logger"
)

// frameWriter 由 hertz 的分块写入器实现
type frameWriter interface {
	Write(p []byte) (int, error)
	Flush() error
}

// sseFrame 每个事件一帧：data: {json}\n\n
func sseFrame(ev model.StreamEvent) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to encode stream event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

// writeEvents 把事件逐帧写出并立即 flush
func writeEvents(ctx context.Context, svc *service.OnboardingService, res *service.NextQuestionResult, w frameWriter) error {
	return svc.StreamQuestion(ctx, res, func(ev model.StreamEvent) error {
		frame, err := sseFrame(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		return w.Flush()
	})
}

func streamQuestion(ctx context.Context, c *app.RequestContext, svc *service.OnboardingService, res *service.NextQuestionResult) {
	c.SetStatusCode(200)
	c.Response.Header.SetContentType("text/event-stream; charset=utf-8")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("Connection", "keep-alive")
	c.Response.Header.Set("X-Accel-Buffering", "no")

	w := resp.NewChunkedBodyWriter(&c.Response, c.GetWriter())
	c.Response.HijackWriter(w)

	streamCtx, cancel := context.WithTimeout(ctx, config.Cfg.StreamTimeout())
	defer cancel()

	err := writeEvents(streamCtx, svc, res, w)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrClientGone):
		logger.Logger.Debug("Client left during question stream",
			logger.SessionID(res.SessionID),
			zap.Error(err),
		)
	default:
		logger.Logger.Error("Question stream failed",
			logger.SessionID(res.SessionID),
			zap.Error(err),
		)
	}
}
