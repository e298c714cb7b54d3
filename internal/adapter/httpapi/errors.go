package httpapi

import (
	"errors"

	"git-gauge/internal/common"
	"git-gauge/internal/logger"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// statusFor 错误码 -> HTTP 状态码
func statusFor(code string) int {
	switch code {
	case common.ErrCodeInvalidInput, common.ErrCodeInvalidIdentifier:
		return fiber.StatusBadRequest
	case common.ErrCodeNotFound:
		return fiber.StatusNotFound
	case common.ErrCodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// toResponse 把任意错误转成状态码和响应体，5xx 不暴露底层细节
func toResponse(err error) (int, ErrorResponse) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return statusFor(appErr.Code), ErrorResponse{ErrorCode: appErr.Code, ErrorMessage: appErr.Message}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			return fiberErr.Code, ErrorResponse{ErrorCode: common.ErrCodeNotFound, ErrorMessage: fiberErr.Message}
		case fiberErr.Code == fiber.StatusUnauthorized:
			return fiberErr.Code, ErrorResponse{ErrorCode: common.ErrCodeUnauthorized, ErrorMessage: fiberErr.Message}
		case fiberErr.Code >= 400 && fiberErr.Code < 500:
			return fiberErr.Code, ErrorResponse{ErrorCode: common.ErrCodeInvalidInput, ErrorMessage: fiberErr.Message}
		}
	}

	return fiber.StatusInternalServerError, ErrorResponse{
		ErrorCode:    common.ErrCodeInternal,
		ErrorMessage: "Internal server error",
	}
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	status, body := toResponse(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Error("请求处理失败",
			zap.String("path", c.Path()),
			zap.String(logger.FieldErrorCode, body.ErrorCode),
			zap.Error(err))
	}
	return c.Status(status).JSON(body)
}
