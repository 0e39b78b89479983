package dto

import "CoParent/internal/model"

// ========== Onboarding 相关 DTO ==========

// NextQuestionQuery GET /v1/onboarding/question 查询参数
type NextQuestionQuery struct {
	SessionID string `query:"session_id"`
	Resumed   bool   `query:"resumed"`
}

// NextQuestionResponse 非流式的问题响应
type NextQuestionResponse struct {
	Question  *model.QuestionView `json:"question"`
	Progress  *model.Progress     `json:"progress,omitempty"`
	SessionID string              `json:"session_id"`
	Completed bool                `json:"completed"`
	IsResumed bool                `json:"is_resumed,omitempty"`
}

// SubmitAnswerRequest POST /v1/onboarding/answers
type SubmitAnswerRequest struct {
	SessionID   string `json:"session_id"`
	QuestionKey string `json:"question_key"`
	Answer      string `json:"answer"`
}

// ReviseAnswerRequest PUT /v1/onboarding/answers/:question_key
type ReviseAnswerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// SubmitAnswerResponse 提交答案响应
type SubmitAnswerResponse struct {
	NextQuestion *model.QuestionView `json:"next_question"`
	Progress     *model.Progress     `json:"progress,omitempty"`
	SessionID    string              `json:"session_id"`
	Completed    bool                `json:"completed"`
}

// ProgressResponse GET /v1/onboarding/progress
type ProgressResponse struct {
	SessionID          string `json:"session_id"`
	State              string `json:"state"`
	CurrentQuestionKey string `json:"current_question_key,omitempty"`
	Answered           int    `json:"answered"`
	Total              int    `json:"total"`
	Completed          bool   `json:"completed"`
}
