package service

import (
	"context"
	"fmt"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"
	"git-gauge/internal/port"
	"git-gauge/internal/schemas"

	"go.uber.org/zap"
)

// DefaultGenerationOptions 偏向确定性的解码参数
var DefaultGenerationOptions = port.GenerationOptions{
	MaxOutputTokens: 4096,
	Temperature:     0.3,
	Timeout:         60 * time.Second,
}

// ReportSynthesizer 实现了 port.Synthesizer 接口
// 优先走模型，任何一步失败都退回到规则兜底
type ReportSynthesizer struct {
	generator  port.ReportGenerator // 为空时只走兜底
	opts       port.GenerationOptions
	maxRetries int
	retryDelay time.Duration
	validate   func(*domain.AnalysisReport) error
	log        *zap.Logger
}

func NewReportSynthesizer(generator port.ReportGenerator, opts port.GenerationOptions, log *zap.Logger) *ReportSynthesizer {
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = DefaultGenerationOptions.MaxOutputTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGenerationOptions.Timeout
	}

	log = logger.OrNop(log)
	if generator != nil {
		log = logger.WithCommonFields(log, generator.Provider(), generator.Model())
	}

	return &ReportSynthesizer{
		generator:  generator,
		opts:       opts,
		maxRetries: 2,
		retryDelay: time.Second,
		validate:   schemas.ValidateReport,
		log:        log,
	}
}

// SetRetry 模型不可用时的重试次数和初始间隔
func (s *ReportSynthesizer) SetRetry(maxRetries int, delay time.Duration) {
	if maxRetries >= 0 {
		s.maxRetries = maxRetries
	}
	if delay > 0 {
		s.retryDelay = delay
	}
}

// Synthesize 生成报告，只有兜底也失败时才返回错误
func (s *ReportSynthesizer) Synthesize(ctx context.Context, in domain.SynthesisInput) (*domain.AnalysisReport, error) {
	in.Skills = domain.NormalizeSkills(in.Skills)
	log := s.log.With(zap.String(logger.FieldUsername, in.Username))

	if len(in.Repos) == 0 {
		log.Info("没有相关仓库，返回固定报告")
		return domain.NoMatchReport(in.Username, in.Skills), nil
	}

	if s.generator != nil {
		report, err := s.primary(ctx, in)
		if err == nil {
			log.Info("模型报告生成成功")
			return report, nil
		}
		log.Warn("模型报告生成失败，改用规则兜底",
			zap.String(logger.FieldErrorCode, common.CodeOf(err)),
			zap.Error(err))
	}

	report, err := s.fallback(in)
	if err != nil {
		log.Error("兜底报告生成失败", zap.Error(err))
		return nil, err
	}
	return report, nil
}

func (s *ReportSynthesizer) primary(ctx context.Context, in domain.SynthesisInput) (report *domain.AnalysisReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.NewError(common.ErrCodeModelUnparseable, fmt.Sprintf("panic while building report: %v", r))
		}
	}()

	prompt := BuildPrompt(in)

	var raw string
	err = common.Do(ctx, func() error {
		var genErr error
		raw, genErr = s.generator.Generate(ctx, prompt, s.opts)
		return genErr
	},
		common.WithMaxRetries(s.maxRetries),
		common.WithInitialDelay(s.retryDelay),
		common.WithRetryIf(func(err error) bool {
			return common.IsCode(err, common.ErrCodeModelUnavailable)
		}),
	)
	if err != nil {
		return nil, err
	}

	s.log.Debug("模型原始输出", zap.String("raw", logger.TruncateForLog(raw, 500)))

	report, err = ParseModelReport(raw, in)
	if err != nil {
		return nil, err
	}
	if err := s.validate(report); err != nil {
		return nil, common.WrapError(common.ErrCodeModelUnparseable, "model report failed schema validation", err)
	}
	return report, nil
}

func (s *ReportSynthesizer) fallback(in domain.SynthesisInput) (report *domain.AnalysisReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = common.NewError(common.ErrCodeProcessing, fmt.Sprintf("fallback report panicked: %v", r))
		}
	}()

	report = FallbackReport(in)
	if err := s.validate(report); err != nil {
		return nil, common.WrapError(common.ErrCodeProcessing, "fallback report failed schema validation", err)
	}
	return report, nil
}
