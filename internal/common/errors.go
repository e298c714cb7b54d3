package common

import (
	"errors"
	"fmt"
	"time"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error

	// RetryAfter 仅在限流错误时有值：上游建议的恢复等待时间
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewRateLimitError 创建带恢复时间的限流错误
func NewRateLimitError(message string, retryAfter time.Duration, err error) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    message,
		Err:        err,
		RetryAfter: retryAfter,
	}
}

// CodeOf 返回错误链上第一个 AppError 的错误码，没有则返回空串
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode 判断错误链上是否存在指定错误码
func IsCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// RetryAfterOf 取出限流错误携带的恢复时间
func RetryAfterOf(err error) (time.Duration, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == ErrCodeRateLimited {
		return appErr.RetryAfter, true
	}
	return 0, false
}

// SummaryOf 只返回错误链上第一个 AppError 的 Message，不带底层错误
// 没有 AppError 时退回 err.Error()
func SummaryOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// 错误码常量
const (
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeRateLimited       = "UPSTREAM_RATE_LIMITED"
	ErrCodeUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	ErrCodeGitHubAPI         = "GITHUB_API_ERROR"
	ErrCodeNoRelevantRepos   = "NO_RELEVANT_REPOSITORIES"
	ErrCodeModelUnavailable  = "MODEL_UNAVAILABLE"
	ErrCodeModelUnparseable  = "MODEL_RESPONSE_UNPARSEABLE"
	ErrCodeDatabase          = "DATABASE_ERROR"
	ErrCodeInvalidIdentifier = "INVALID_IDENTIFIER"
	ErrCodeProcessing        = "PROCESSING_ERROR"
	ErrCodeNotification      = "NOTIFICATION_ERROR"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
