package util

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 携带业务错误码和对应 HTTP 状态码的错误，从 service 层一路传到 handler。
// Message 是面向用户的中文提示，内部错误细节只进日志，不进响应体。
type AppError struct {
	Code       int
	HTTPStatus int
	Message    string
	// Data 可选，放进错误响应的 data 字段（例如剩余冷却秒数）
	Data map[string]interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("app error %d: %s", e.Code, e.Message)
}

// NewAppError 用错误码的默认文案构造 AppError。
func NewAppError(code, httpStatus int) *AppError {
	return &AppError{Code: code, HTTPStatus: httpStatus, Message: CodeMessage(code)}
}

// NewAppErrorMsg 用自定义文案构造 AppError。
func NewAppErrorMsg(code, httpStatus int, msg string) *AppError {
	return &AppError{Code: code, HTTPStatus: httpStatus, Message: msg}
}

// AsAppError 把任意 error 规约成 AppError，未识别的一律按系统错误处理。
func AsAppError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return NewAppError(CodeSystemError, http.StatusInternalServerError)
}
