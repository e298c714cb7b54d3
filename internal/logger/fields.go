package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldJobID     = "job_id"
	FieldUsername  = "github_username"
	FieldStatus    = "status"
	FieldErrorCode = "error_code"
	FieldRequestID = "request_id"
)

// StringFields converts key/value pairs into zap fields, skipping blank keys or values.
func StringFields(kv ...string) []zap.Field {
	result := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key := strings.TrimSpace(kv[i])
		value := strings.TrimSpace(kv[i+1])
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(l *zap.Logger, fields ...zap.Field) *zap.Logger {
	l = OrNop(l)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// WithCommonFields tags the logger with the model provider and model name.
func WithCommonFields(l *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(l, StringFields(FieldProvider, provider, FieldModel, model)...)
}

// WithJob tags the logger with the job identity.
func WithJob(l *zap.Logger, jobID, username string) *zap.Logger {
	return WithFields(l, StringFields(FieldJobID, jobID, FieldUsername, username)...)
}
