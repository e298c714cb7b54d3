package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"
	"git-gauge/internal/port"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 列表查询参数
const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	DefaultEstimatedJobSeconds = 300
)

// JobService 提交和查询任务
type JobService struct {
	store port.RecordStore
	queue port.JobQueue
	cache port.StatusCache // 可为空

	statusTTL           time.Duration
	estimatedJobSeconds int
	log                 *zap.Logger
}

func NewJobService(store port.RecordStore, queue port.JobQueue, cache port.StatusCache, log *zap.Logger) *JobService {
	return &JobService{
		store:               store,
		queue:               queue,
		cache:               cache,
		statusTTL:           DefaultStatusTTL,
		estimatedJobSeconds: DefaultEstimatedJobSeconds,
		log:                 logger.OrNop(log),
	}
}

func (s *JobService) SetStatusTTL(ttl time.Duration) {
	if ttl > 0 {
		s.statusTTL = ttl
	}
}

// SetEstimatedJobSeconds 单个任务的预计耗时，用于估算等待时间
func (s *JobService) SetEstimatedJobSeconds(n int) {
	if n > 0 {
		s.estimatedJobSeconds = n
	}
}

// Submit 校验请求，落库后入队
func (s *JobService) Submit(ctx context.Context, req domain.CreateJobRequest) (*domain.JobTicket, error) {
	req.GitHubUsername = strings.TrimSpace(req.GitHubUsername)
	if err := req.Validate(); err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidInput, validationMessage(err), err)
	}

	skills := domain.NormalizeSkills(req.Skills)
	if len(skills) == 0 {
		return nil, common.NewError(common.ErrCodeInvalidInput, "skills must contain at least one non-blank entry")
	}

	job := &domain.Job{
		ID:              uuid.NewString(),
		GitHubUsername:  req.GitHubUsername,
		Skills:          skills,
		Status:          domain.JobQueued,
		RepoLimit:       req.RepoLimit,
		MaxFilesPerRepo: req.MaxFilesPerRepo,
		Languages:       domain.NormalizeSkills(req.Languages),
		NotesForAI:      strings.TrimSpace(req.NotesForAI),
	}
	if job.RepoLimit == 0 {
		job.RepoLimit = domain.DefaultRepoLimit
	}
	if job.MaxFilesPerRepo == 0 {
		job.MaxFilesPerRepo = domain.DefaultMaxFilesPerRepo
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.cacheSet(ctx, StatusKey(job.ID), string(domain.JobQueued))

	depth, err := s.queue.Len(ctx)
	if err != nil {
		depth = 0
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// 任务已落库，巡检会把滞留的 queued 任务重新入队
		s.log.Error("任务入队失败", zap.String(logger.FieldJobID, job.ID), zap.Error(err))
		return nil, common.WrapError(common.ErrCodeInternal, "failed to enqueue job", err)
	}

	logger.WithJob(s.log, job.ID, job.GitHubUsername).Info("任务已提交",
		zap.Strings("skills", job.Skills),
		zap.Int("queue_depth", depth))

	return &domain.JobTicket{
		JobID:                job.ID,
		Status:               domain.JobQueued,
		EstimatedWaitSeconds: (depth + 1) * s.estimatedJobSeconds,
	}, nil
}

// Get 查询单个任务，id 格式不对时不访问存储
func (s *JobService) Get(ctx context.Context, id string) (*domain.JobView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.NewError(common.ErrCodeInvalidIdentifier, "Invalid job ID format")
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	view := baseView(job)

	// 库里还没到终态时以缓存为准
	if !job.Status.IsTerminal() {
		s.overlayCache(ctx, view)
		return view, nil
	}

	switch job.Status {
	case domain.JobCompleted:
		artifact, err := s.store.GetArtifactByJobID(ctx, id)
		if err != nil {
			if !common.IsCode(err, common.ErrCodeNotFound) {
				return nil, err
			}
			s.log.Warn("已完成的任务没有产物", zap.String(logger.FieldJobID, id))
			break
		}
		view.Report = artifact.Report
		generatedAt := artifact.GeneratedAt
		view.GeneratedAt = &generatedAt
	case domain.JobFailed:
		view.ErrorCode = job.ErrorCode
		view.ErrorMessage = job.ErrorMessage
	}
	return view, nil
}

// List 最近的任务，按创建时间倒序
func (s *JobService) List(ctx context.Context, limit int) ([]*domain.JobView, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	jobs, err := s.store.ListRecentJobs(ctx, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.JobView, 0, len(jobs))
	for _, job := range jobs {
		view := baseView(job)
		if job.Status == domain.JobFailed {
			view.ErrorCode = job.ErrorCode
			view.ErrorMessage = job.ErrorMessage
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *JobService) overlayCache(ctx context.Context, view *domain.JobView) {
	if s.cache == nil {
		return
	}
	cached, ok, err := s.cache.Get(ctx, StatusKey(view.JobID))
	if err != nil || !ok {
		return
	}
	status := domain.JobStatus(cached)
	if !status.Valid() {
		return
	}
	view.Status = status

	switch status {
	case domain.JobCompleted:
		if raw, ok, _ := s.cache.Get(ctx, ResultKey(view.JobID)); ok {
			var report domain.AnalysisReport
			if err := json.Unmarshal([]byte(raw), &report); err == nil {
				view.Report = &report
			}
		}
	case domain.JobFailed:
		// 没有缓存错误码时按处理失败算
		view.ErrorCode = common.ErrCodeProcessing
		if code, ok, _ := s.cache.Get(ctx, ErrorCodeKey(view.JobID)); ok && code != "" {
			view.ErrorCode = code
		}
		if msg, ok, _ := s.cache.Get(ctx, ErrorKey(view.JobID)); ok {
			view.ErrorMessage = msg
		}
	}
}

func (s *JobService) cacheSet(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.statusTTL); err != nil {
		s.log.Debug("写状态缓存失败", zap.String("key", key), zap.Error(err))
	}
}

func baseView(job *domain.Job) *domain.JobView {
	return &domain.JobView{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

// validationMessage 把 validator 的错误转成一句可读的话
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
