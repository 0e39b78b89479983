package errors

import "errors"

func (d Definition) Error() string {
	return d.Message
}

// Is 按错误码比较，使带自定义 Message 的 Definition 仍能匹配预定义错误。
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	return ok && t.Code == d.Code
}

// WithMessage 返回同一错误码、不同提示文案的副本。
func (d Definition) WithMessage(message string) Definition {
	return Definition{Code: d.Code, Message: message}
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 通用错误。
var (
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InternalError   = Definition{Code: "INTERNAL_ERROR", Message: "Internal error"}
)

// 引导流程错误。
var (
	// OnboardingSessionNotFound 未知的 session_id（InvalidSession）
	OnboardingSessionNotFound = Definition{Code: "ONBOARDING_SESSION_NOT_FOUND", Message: "Onboarding session not found"}
	// OnboardingSessionCompleted 已完成的会话不再接受答案（InvalidTransition）
	OnboardingSessionCompleted = Definition{Code: "ONBOARDING_SESSION_COMPLETED", Message: "Onboarding session already completed"}
	// OnboardingAnswerOutOfOrder 提交的问题不是当前期望的问题
	OnboardingAnswerOutOfOrder = Definition{Code: "ONBOARDING_ANSWER_OUT_OF_ORDER", Message: "Answer does not match the current question"}
	OnboardingAnswerRequired   = Definition{Code: "ONBOARDING_ANSWER_REQUIRED", Message: "An answer is required"}
	OnboardingAnswerInvalid    = Definition{Code: "ONBOARDING_ANSWER_INVALID", Message: "Answer is invalid"}
	OnboardingQuestionUnknown  = Definition{Code: "ONBOARDING_QUESTION_UNKNOWN", Message: "Unknown question"}
	EmailAlreadyRegistered     = Definition{Code: "EMAIL_ALREADY_REGISTERED", Message: "This email is already registered"}
)

// 基础设施错误。
var (
	ErrDatabaseConnectionNil = errors.New("database connection is nil")
	ErrMQConnectionNil       = errors.New("RabbitMQ connection is nil")
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:             InvalidRequest,
	TooManyRequests.Code:            TooManyRequests,
	InternalError.Code:              InternalError,
	OnboardingSessionNotFound.Code:  OnboardingSessionNotFound,
	OnboardingSessionCompleted.Code: OnboardingSessionCompleted,
	OnboardingAnswerOutOfOrder.Code: OnboardingAnswerOutOfOrder,
	OnboardingAnswerRequired.Code:   OnboardingAnswerRequired,
	OnboardingAnswerInvalid.Code:    OnboardingAnswerInvalid,
	OnboardingQuestionUnknown.Code:  OnboardingQuestionUnknown,
	EmailAlreadyRegistered.Code:     EmailAlreadyRegistered,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// As 从错误链中取出业务错误。
func As(err error) (Definition, bool) {
	var def Definition
	if errors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// SkipMessageError 表示消息无需重试，消费者直接确认即可
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

func IsSkipMessageError(err error) bool {
	var skip *SkipMessageError
	return errors.As(err, &skip)
}
