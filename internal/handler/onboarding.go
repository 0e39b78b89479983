package handler

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"CoParent/internal/model/dto"
	"CoParent/internal/service"
	"CoParent/pkg/errors"
	"CoParent/pkg/response"
)

var onboardingService *service.OnboardingService

// SetOnboardingService 在 server 启动时注入
func SetOnboardingService(s *service.OnboardingService) {
	onboardingService = s
}

func onboarding() *service.OnboardingService {
	if onboardingService == nil {
		panic("onboarding service not set, call handler.SetOnboardingService first")
	}
	return onboardingService
}

func acceptsEventStream(c *app.RequestContext) bool {
	return strings.Contains(string(c.GetHeader("Accept")), "text/event-stream")
}

// GetNextQuestion GET /v1/onboarding/question
// 已完成的会话和不接受 SSE 的客户端返回 JSON，否则以 SSE 流式下发问题。
func GetNextQuestion(ctx context.Context, c *app.RequestContext) {
	var query dto.NextQuestionQuery
	if err := c.BindQuery(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	svc := onboarding()
	sessionID, fromCookie := resolveSessionID(c, query.SessionID)

	res, err := svc.NextQuestion(ctx, sessionID, query.Resumed || fromCookie)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	currentKey := ""
	if res.Question != nil {
		currentKey = res.Question.Key
	}
	saveResumeCookie(c, res.SessionID, currentKey, res.Progress)

	if res.Completed || !acceptsEventStream(c) {
		progress := res.Progress
		response.JSON(ctx, c, dto.NextQuestionResponse{
			SessionID: res.SessionID,
			Question:  service.QuestionView(res.Question),
			Completed: res.Completed,
			IsResumed: res.Resumed,
			Progress:  &progress,
		})
		return
	}

	streamQuestion(ctx, c, svc, res)
}

// SubmitAnswer POST /v1/onboarding/answers
func SubmitAnswer(ctx context.Context, c *app.RequestContext) {
	var req dto.SubmitAnswerRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if req.QuestionKey == "" {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("question_key is required"))
		return
	}

	sessionID, _ := resolveSessionID(c, req.SessionID)
	res, err := onboarding().SubmitAnswer(ctx, sessionID, req.QuestionKey, req.Answer)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	writeAnswerResult(ctx, c, res)
}

// ReviseAnswer PUT /v1/onboarding/answers/:question_key
func ReviseAnswer(ctx context.Context, c *app.RequestContext) {
	var req dto.ReviseAnswerRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	sessionID, _ := resolveSessionID(c, req.SessionID)
	res, err := onboarding().ReviseAnswer(ctx, sessionID, c.Param("question_key"), req.Answer)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	writeAnswerResult(ctx, c, res)
}

func writeAnswerResult(ctx context.Context, c *app.RequestContext, res *service.SubmitAnswerResult) {
	currentKey := ""
	if res.NextQuestion != nil {
		currentKey = res.NextQuestion.Key
	}
	saveResumeCookie(c, res.SessionID, currentKey, res.Progress)

	progress := res.Progress
	response.JSON(ctx, c, dto.SubmitAnswerResponse{
		SessionID:    res.SessionID,
		Completed:    res.Completed,
		NextQuestion: service.QuestionView(res.NextQuestion),
		Progress:     &progress,
	})
}

// GetOnboardingProgress GET /v1/onboarding/progress
func GetOnboardingProgress(ctx context.Context, c *app.RequestContext) {
	sessionID, _ := resolveSessionID(c, c.Query("session_id"))

	res, err := onboarding().Progress(ctx, sessionID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	saveResumeCookie(c, res.SessionID, res.CurrentQuestionKey, res.Progress)
	response.JSON(ctx, c, dto.ProgressResponse{
		SessionID:          res.SessionID,
		State:              string(res.State),
		CurrentQuestionKey: res.CurrentQuestionKey,
		Answered:           res.Progress.Answered,
		Total:              res.Progress.Total,
		Completed:          res.Completed,
	})
}
