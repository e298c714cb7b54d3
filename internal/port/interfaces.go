package port

import (
	"context"
	"time"

	"git-gauge/internal/domain"
)

// RepositoryHost (代码托管): 负责从 GitHub 拉取仓库及其元数据
// 必须区分 用户不存在 / 限流(带恢复时间) / 超时 / 其他错误
type RepositoryHost interface {
	// 列出用户名下 (owner) 的全部仓库，自动翻页
	ListRepositories(ctx context.Context, username string) ([]*domain.RepositoryCandidate, error)

	// 语言 -> 字节数，拿不到时 Found=false，不算错误
	GetLanguages(ctx context.Context, owner, repo string) (domain.Languages, error)

	// README 原文，仓库没有 README 时 Found=false，不算错误
	GetReadme(ctx context.Context, owner, repo string) (domain.Readme, error)

	// 根目录下的代码文件，最多 limit 个
	ListCodeFiles(ctx context.Context, owner, repo string, limit int) ([]domain.CodeFile, error)
}

// GenerationOptions 模型解码参数
type GenerationOptions struct {
	MaxOutputTokens int
	Temperature     float32
	Timeout         time.Duration
}

// ReportGenerator (写手): 调用大模型，返回原始文本
type ReportGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)

	// Provider / Model 只用于日志
	Provider() string
	Model() string
}

// RecordStore (仓库管理员): 任务和产物的持久化
type RecordStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// 只更新状态和错误信息
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errorCode, errorMessage string) error

	// 按创建时间倒序
	ListRecentJobs(ctx context.Context, limit int) ([]*domain.Job, error)

	// 处于 status 且 updated_at 早于 before 的任务，按更新时间升序
	ListStaleJobs(ctx context.Context, status domain.JobStatus, before time.Time, limit int) ([]*domain.Job, error)

	// 任务仍处于 status 时把 updated_at 改成 at，否则返回 NOT_FOUND
	TouchJob(ctx context.Context, id string, status domain.JobStatus, at time.Time) error

	CreateArtifact(ctx context.Context, artifact *domain.JobArtifact) error
	GetArtifactByJobID(ctx context.Context, jobID string) (*domain.JobArtifact, error)
}

// StatusCache 带过期时间的 KV，用于快速轮询任务状态
// Get 在 key 不存在时返回 ("", false, nil)
type StatusCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// JobQueue 先进先出的任务队列
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error

	// 最多阻塞 wait，超时返回 ("", false, nil)
	Dequeue(ctx context.Context, wait time.Duration) (string, bool, error)

	Len(ctx context.Context) (int, error)
}

// Notifier (信使): 任务进入终态时推送消息
type Notifier interface {
	NotifyJob(ctx context.Context, job *domain.Job, report *domain.AnalysisReport) error
}

// Scorer 仓库相关度打分
type Scorer interface {
	Score(ctx context.Context, username string, skills []string, opts domain.ScoreOptions) ([]*domain.ScoredRepository, error)
}

// Synthesizer 生成报告，只有兜底路径也失败时才返回错误
type Synthesizer interface {
	Synthesize(ctx context.Context, in domain.SynthesisInput) (*domain.AnalysisReport, error)
}
