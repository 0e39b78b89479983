package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"CoParent/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// StatusFor 根据错误码映射 HTTP 状态码
func StatusFor(err error) int {
	def, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.InvalidRequest.Code, errors.OnboardingQuestionUnknown.Code:
		return http.StatusBadRequest // 400
	case errors.OnboardingSessionNotFound.Code:
		return http.StatusNotFound // 404
	case errors.OnboardingSessionCompleted.Code, errors.OnboardingAnswerOutOfOrder.Code:
		return http.StatusConflict // 409
	case errors.OnboardingAnswerRequired.Code, errors.OnboardingAnswerInvalid.Code,
		errors.EmailAlreadyRegistered.Code:
		return http.StatusUnprocessableEntity // 422
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}

func body(err error, details map[string]interface{}) ErrorResponse {
	var code, message string
	if def, ok := errors.As(err); ok {
		code = def.Code
		message = def.Message
	} else {
		// 基础设施错误不把内部信息暴露给客户端
		code = errors.InternalError.Code
		message = errors.InternalError.Message
	}

	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(StatusFor(err), body(err, nil))
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	c.JSON(StatusFor(err), body(err, details))
}

// JSON 直接输出结构体，不做 data 包装；引导接口与前端约定的就是扁平结构
func JSON(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}
