// Package schemas 用内嵌的 JSON Schema 校验分析报告
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"git-gauge/internal/domain"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed analysis_report.schema.json
var analysisReportSchema []byte

var (
	compileOnce    sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string
	Message string
}

// ValidationError 报告不符合 Schema
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("report validation failed:")
	for i, e := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, e.Field, e.Message))
	}
	return sb.String()
}

func schema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisReportSchema))
	})
	return compiledSchema, compileErr
}

// ValidateReport 序列化报告后按 Schema 校验，nil 切片会序列化成 null 从而校验失败
func ValidateReport(report *domain.AnalysisReport) error {
	if report == nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: "report is nil"}}}
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return ValidateJSON(raw)
}

// ValidateJSON 校验原始 JSON
func ValidateJSON(raw []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("load report schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate report: %w", err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}
