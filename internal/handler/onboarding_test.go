package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoParent/internal/catalog"
	"CoParent/internal/middleware"
	"CoParent/internal/model"
	"CoParent/internal/model/dto"
	"CoParent/internal/repository"
	"CoParent/internal/service"
)

func newTestServer(t *testing.T, opts ...config.Option) (*server.Hertz, *service.OnboardingService) {
	t.Helper()
	cat := catalog.MustLoadBuiltin("testing")
	svc := service.NewOnboardingService(service.OnboardingOptions{
		Catalog:                 cat,
		Sessions:                repository.NewMemorySessionStore(cat),
		Accounts:                repository.NewMemoryAccounts("taken@example.dk"),
		Profiles:                repository.NewMemoryProfiles(),
		Phraser:                 service.NewStaticPhraser(2, 0),
		RestartOnUnknownSession: true,
	})
	SetOnboardingService(svc)
	t.Cleanup(func() { SetOnboardingService(nil) })

	h := server.New(opts...)
	g := h.Group("/v1/onboarding", middleware.ResumeCookieMiddleware())
	g.GET("/question", GetNextQuestion)
	g.POST("/answers", SubmitAnswer)
	g.PUT("/answers/:question_key", ReviseAnswer)
	g.GET("/progress", GetOnboardingProgress)
	return h, svc
}

func jsonBody(t *testing.T, v interface{}) *ut.Body {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &ut.Body{Body: bytes.NewReader(b), Len: len(b)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func decode(t *testing.T, w *ut.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// cookieFrom 取出 Set-Cookie 的 name=value 部分
func cookieFrom(w *ut.ResponseRecorder) string {
	var out string
	w.Header().VisitAllCookie(func(_, value []byte) {
		out = strings.SplitN(string(value), ";", 2)[0]
	})
	return out
}

func submit(t *testing.T, h *server.Hertz, req dto.SubmitAnswerRequest, headers ...ut.Header) *ut.ResponseRecorder {
	t.Helper()
	return ut.PerformRequest(h.Engine, http.MethodPost, "/v1/onboarding/answers", jsonBody(t, req), append(headers, jsonHeader)...)
}

func TestOnboardingJSONFlow(t *testing.T) {
	h, _ := newTestServer(t)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/question", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first dto.NextQuestionResponse
	decode(t, w, &first)
	require.NotNil(t, first.Question)
	assert.Equal(t, "name", first.Question.Key)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, &model.Progress{Answered: 0, Total: 2}, first.Progress)

	w = submit(t, h, dto.SubmitAnswerRequest{SessionID: first.SessionID, QuestionKey: "name", Answer: "Anna"})
	require.Equal(t, http.StatusOK, w.Code)
	var afterName dto.SubmitAnswerResponse
	decode(t, w, &afterName)
	assert.False(t, afterName.Completed)
	require.NotNil(t, afterName.NextQuestion)
	assert.Equal(t, "email", afterName.NextQuestion.Key)

	w = submit(t, h, dto.SubmitAnswerRequest{SessionID: first.SessionID, QuestionKey: "email", Answer: "anna@example.dk"})
	require.Equal(t, http.StatusOK, w.Code)
	var done dto.SubmitAnswerResponse
	decode(t, w, &done)
	assert.True(t, done.Completed)
	assert.Nil(t, done.NextQuestion)

	// 已完成的会话即使要求 SSE 也返回 JSON
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/question?session_id="+first.SessionID, nil,
		ut.Header{Key: "Accept", Value: "text/event-stream"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"question":null`)
	assert.Contains(t, w.Body.String(), `"completed":true`)
}

func TestOnboardingErrorStatuses(t *testing.T) {
	h, svc := newTestServer(t)
	res, err := svc.NextQuestion(context.Background(), "", false)
	require.NoError(t, err)
	sid := res.SessionID

	cases := []struct {
		name   string
		req    dto.SubmitAnswerRequest
		status int
		code   string
	}{
		{"out of order", dto.SubmitAnswerRequest{SessionID: sid, QuestionKey: "email", Answer: "a@b.dk"}, http.StatusConflict, "ONBOARDING_ANSWER_OUT_OF_ORDER"},
		{"required", dto.SubmitAnswerRequest{SessionID: sid, QuestionKey: "name", Answer: "  "}, http.StatusUnprocessableEntity, "ONBOARDING_ANSWER_REQUIRED"},
		{"unknown session", dto.SubmitAnswerRequest{SessionID: "missing", QuestionKey: "name", Answer: "Anna"}, http.StatusNotFound, "ONBOARDING_SESSION_NOT_FOUND"},
		{"missing key", dto.SubmitAnswerRequest{SessionID: sid, Answer: "Anna"}, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := submit(t, h, tc.req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}

	t.Run("duplicate email", func(t *testing.T) {
		require.Equal(t, http.StatusOK, submit(t, h, dto.SubmitAnswerRequest{SessionID: sid, QuestionKey: "name", Answer: "Anna"}).Code)
		w := submit(t, h, dto.SubmitAnswerRequest{SessionID: sid, QuestionKey: "email", Answer: "taken@example.dk"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "EMAIL_ALREADY_REGISTERED")
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte("{not json")
		w := ut.PerformRequest(h.Engine, http.MethodPost, "/v1/onboarding/answers",
			&ut.Body{Body: bytes.NewReader(body), Len: len(body)}, jsonHeader)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResumeCookieCarriesSession(t *testing.T) {
	h, _ := newTestServer(t)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/question", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first dto.NextQuestionResponse
	decode(t, w, &first)
	cookie := cookieFrom(w)
	require.NotEmpty(t, cookie)
	jar := ut.Header{Key: "Cookie", Value: cookie}

	// 不带 session_id，仅凭 cookie 作答
	w = submit(t, h, dto.SubmitAnswerRequest{QuestionKey: "name", Answer: "Anna"}, jar)
	require.Equal(t, http.StatusOK, w.Code)
	var answered dto.SubmitAnswerResponse
	decode(t, w, &answered)
	assert.Equal(t, first.SessionID, answered.SessionID)

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/question", nil, jar)
	require.Equal(t, http.StatusOK, w.Code)
	var resumed dto.NextQuestionResponse
	decode(t, w, &resumed)
	assert.Equal(t, first.SessionID, resumed.SessionID)
	assert.True(t, resumed.IsResumed)
	assert.Equal(t, "email", resumed.Question.Key)

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/progress", nil, jar)
	require.Equal(t, http.StatusOK, w.Code)
	var progress dto.ProgressResponse
	decode(t, w, &progress)
	assert.Equal(t, dto.ProgressResponse{
		SessionID:          first.SessionID,
		State:              string(model.SessionStateInProgress),
		CurrentQuestionKey: "email",
		Answered:           1,
		Total:              2,
	}, progress)
}

func TestReviseAnswerEndpoint(t *testing.T) {
	h, svc := newTestServer(t)
	ctx := context.Background()
	res, err := svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, res.SessionID, "name", "Anna")
	require.NoError(t, err)

	w := ut.PerformRequest(h.Engine, http.MethodPut, "/v1/onboarding/answers/name",
		jsonBody(t, dto.ReviseAnswerRequest{SessionID: res.SessionID, Answer: "Anne"}), jsonHeader)
	require.Equal(t, http.StatusOK, w.Code)
	var revised dto.SubmitAnswerResponse
	decode(t, w, &revised)
	assert.Equal(t, "email", revised.NextQuestion.Key)

	w = ut.PerformRequest(h.Engine, http.MethodPut, "/v1/onboarding/answers/email",
		jsonBody(t, dto.ReviseAnswerRequest{SessionID: res.SessionID, Answer: "a@b.dk"}), jsonHeader)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProgressWithoutSession(t *testing.T) {
	h, _ := newTestServer(t)
	w := ut.PerformRequest(h.Engine, http.MethodGet, "/v1/onboarding/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type bufferWriter struct {
	bytes.Buffer
	flushes   int
	failAfter int
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	if b.failAfter > 0 && b.flushes >= b.failAfter {
		return 0, errors.New("broken pipe")
	}
	return b.Buffer.Write(p)
}

func (b *bufferWriter) Flush() error {
	b.flushes++
	return nil
}

func TestWriteEventsFramesEachEvent(t *testing.T) {
	_, svc := newTestServer(t)
	ctx := context.Background()
	res, err := svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)

	w := &bufferWriter{}
	require.NoError(t, writeEvents(ctx, svc, res, w))

	frames := strings.Split(strings.TrimSuffix(w.String(), "\n\n"), "\n\n")
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, len(frames), w.flushes, "every frame is flushed")

	var types []string
	for _, f := range frames {
		require.True(t, strings.HasPrefix(f, "data: "), f)
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(f, "data: ")), &ev))
		types = append(types, ev.Type)
	}
	assert.Equal(t, "start", types[0])
	assert.Equal(t, "complete", types[len(types)-1])
	assert.Contains(t, frames[0], res.SessionID)
}

func TestWriteEventsClientGone(t *testing.T) {
	_, svc := newTestServer(t)
	ctx := context.Background()
	res, err := svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)

	err = writeEvents(ctx, svc, res, &bufferWriter{failAfter: 1})
	assert.ErrorIs(t, err, service.ErrClientGone)

	// 断开不影响会话
	again, err := svc.NextQuestion(ctx, res.SessionID, false)
	require.NoError(t, err)
	assert.Equal(t, "name", again.Question.Key)
}

func TestSSEFrame(t *testing.T) {
	frame, err := sseFrame(model.StreamEvent{Type: model.StreamEventChunk, Content: "What is"})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"chunk\",\"content\":\"What is\"}\n\n", string(frame))
}
