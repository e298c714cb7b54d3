package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"
	"git-gauge/internal/port"

	"go.uber.org/zap"
)

// DefaultStatusTTL 状态缓存过期时间
const DefaultStatusTTL = time.Hour

// JobOrchestrator 驱动单个任务：queued -> running -> completed/failed
// 任务状态只由它写入
type JobOrchestrator struct {
	scorer      port.Scorer
	synthesizer port.Synthesizer
	store       port.RecordStore
	cache       port.StatusCache // 可为空
	notifier    port.Notifier    // 可为空
	statusTTL   time.Duration
	log         *zap.Logger
}

func NewJobOrchestrator(
	scorer port.Scorer,
	synthesizer port.Synthesizer,
	store port.RecordStore,
	cache port.StatusCache,
	notifier port.Notifier,
	log *zap.Logger,
) *JobOrchestrator {
	return &JobOrchestrator{
		scorer:      scorer,
		synthesizer: synthesizer,
		store:       store,
		cache:       cache,
		notifier:    notifier,
		statusTTL:   DefaultStatusTTL,
		log:         logger.OrNop(log),
	}
}

// SetStatusTTL 设置状态缓存过期时间
func (o *JobOrchestrator) SetStatusTTL(ttl time.Duration) {
	if ttl > 0 {
		o.statusTTL = ttl
	}
}

// Process 处理一个任务直到终态
// 任务不存在或不是 queued 时直接返回错误，不做任何写入
func (o *JobOrchestrator) Process(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	log := logger.WithJob(o.log, job.ID, job.GitHubUsername)

	if job.Status != domain.JobQueued {
		log.Warn("任务不是排队状态，跳过", zap.String(logger.FieldStatus, string(job.Status)))
		return common.NewError(common.ErrCodeInvalidInput,
			fmt.Sprintf("job %s is %s, expected %s", job.ID, job.Status, domain.JobQueued))
	}

	if err := o.store.UpdateJobStatus(ctx, job.ID, domain.JobRunning, "", ""); err != nil {
		return err
	}
	job.Status = domain.JobRunning
	o.cacheSet(ctx, StatusKey(job.ID), string(domain.JobRunning))
	log.Info("开始处理任务", zap.Strings("skills", job.Skills))

	start := time.Now()
	artifact, err := o.runSafely(ctx, job, log)
	if err != nil {
		return o.fail(ctx, job, err, log)
	}

	if err := o.store.UpdateJobStatus(ctx, job.ID, domain.JobCompleted, "", ""); err != nil {
		// 产物已保存但状态没写进去，尽量标记失败
		log.Error("标记任务完成失败", zap.Error(err))
		return o.fail(ctx, job, common.WrapError(common.ErrCodeProcessing, "Failed to mark job completed", err), log)
	}
	job.Status = domain.JobCompleted
	job.UpdatedAt = time.Now().UTC()

	o.cacheSet(ctx, StatusKey(job.ID), string(domain.JobCompleted))
	if raw, err := json.Marshal(artifact.Report); err == nil {
		o.cacheSet(ctx, ResultKey(job.ID), string(raw))
	}
	o.notify(ctx, job, artifact.Report, log)

	log.Info("任务完成",
		zap.String(logger.FieldStatus, string(job.Status)),
		zap.String("decision_hint", artifact.Report.OverallAssessment.DecisionHint),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runSafely 兜住 run 里的 panic，保证任务不会卡在 running
func (o *JobOrchestrator) runSafely(ctx context.Context, job *domain.Job, log *zap.Logger) (artifact *domain.JobArtifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("任务处理 panic", zap.Any("panic", r))
			artifact = nil
			err = common.NewError(common.ErrCodeProcessing, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()
	return o.run(ctx, job, log)
}

func (o *JobOrchestrator) run(ctx context.Context, job *domain.Job, log *zap.Logger) (*domain.JobArtifact, error) {
	// 1. 打分
	ranked, err := o.scorer.Score(ctx, job.GitHubUsername, job.Skills, job.ScoreOptions())
	if err != nil {
		message := "Failed to fetch GitHub data: " + common.SummaryOf(err)
		fields := []zap.Field{zap.String(logger.FieldErrorCode, common.CodeOf(err)), zap.Error(err)}
		if wait, ok := common.RetryAfterOf(err); ok && wait > 0 {
			message += fmt.Sprintf(" (retry after %s)", wait.Round(time.Second))
			fields = append(fields, zap.Duration("retry_after", wait))
		}
		log.Warn("GitHub 数据获取失败", fields...)
		return nil, common.WrapError(common.ErrCodeProcessing, message, err)
	}
	if len(ranked) == 0 {
		return nil, common.NewError(common.ErrCodeNoRelevantRepos,
			"no repositories found matching skills: "+strings.Join(job.Skills, ", "))
	}
	log.Info("仓库打分完成", zap.Int("ranked", len(ranked)))

	// 2. 生成报告
	report, err := o.synthesizer.Synthesize(ctx, domain.SynthesisInput{
		Username:   job.GitHubUsername,
		Skills:     job.Skills,
		Repos:      ranked,
		NotesForAI: job.NotesForAI,
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeProcessing, "Report synthesis failed: "+common.SummaryOf(err), err)
	}
	if report == nil {
		return nil, common.NewError(common.ErrCodeProcessing, "Report synthesis returned no report")
	}

	// 3. 保存产物
	artifact := &domain.JobArtifact{
		JobID:      job.ID,
		RawSources: domain.RawSources{GitHubRepos: ranked},
		Report:     report,
	}
	if err := o.store.CreateArtifact(ctx, artifact); err != nil {
		return nil, common.WrapError(common.ErrCodeProcessing, "Failed to persist report: "+common.SummaryOf(err), err)
	}
	return artifact, nil
}

// fail 标记失败，返回原始错误给调用方记录
func (o *JobOrchestrator) fail(ctx context.Context, job *domain.Job, cause error, log *zap.Logger) error {
	code := common.CodeOf(cause)
	if code == "" {
		code = common.ErrCodeProcessing
	}
	message := failureMessage(cause)

	if err := o.store.UpdateJobStatus(ctx, job.ID, domain.JobFailed, code, message); err != nil {
		log.Error("标记任务失败时出错", zap.Error(err))
	}
	job.Status = domain.JobFailed
	job.ErrorCode = code
	job.ErrorMessage = message
	job.UpdatedAt = time.Now().UTC()

	o.cacheSet(ctx, StatusKey(job.ID), string(domain.JobFailed))
	o.cacheSet(ctx, ErrorKey(job.ID), message)
	o.cacheSet(ctx, ErrorCodeKey(job.ID), code)
	o.notify(ctx, job, nil, log)

	log.Warn("任务失败",
		zap.String(logger.FieldErrorCode, code),
		zap.String("error_message", message))
	return cause
}

// failureMessage 只取最外层的可读信息，不暴露底层错误细节
func failureMessage(err error) string {
	if appErr, ok := err.(*common.AppError); ok && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func (o *JobOrchestrator) cacheSet(ctx context.Context, key, value string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, key, value, o.statusTTL); err != nil {
		o.log.Debug("写状态缓存失败", zap.String("key", key), zap.Error(err))
	}
}

func (o *JobOrchestrator) notify(ctx context.Context, job *domain.Job, report *domain.AnalysisReport, log *zap.Logger) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyJob(ctx, job, report); err != nil {
		log.Warn("任务通知发送失败", zap.Error(err))
	}
}
