package domain

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid 是否是已知状态
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// CanTransitionTo 状态机：queued -> running -> {completed, failed}
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	}
	return false
}

// PreviousStatuses 能转移到 next 的前置状态
func PreviousStatuses(next JobStatus) []JobStatus {
	var prev []JobStatus
	for _, s := range []JobStatus{JobQueued, JobRunning, JobCompleted, JobFailed} {
		if s.CanTransitionTo(next) {
			prev = append(prev, s)
		}
	}
	return prev
}

// Job 一次分析请求
type Job struct {
	ID             string    `json:"job_id" gorm:"type:uuid;primaryKey"`
	GitHubUsername string    `json:"github_username" gorm:"size:255;not null;index"`
	Skills         []string  `json:"skills" gorm:"serializer:json;not null"`
	Status         JobStatus `json:"status" gorm:"size:20;not null;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time `json:"updated_at"`
	ErrorCode      string    `json:"error_code,omitempty" gorm:"size:100"`
	ErrorMessage   string    `json:"error_message,omitempty" gorm:"type:text"`

	// 附加参数
	RepoLimit       int      `json:"repo_limit,omitempty"`
	MaxFilesPerRepo int      `json:"max_files_per_repo,omitempty"`
	Languages       []string `json:"languages,omitempty" gorm:"serializer:json"`
	NotesForAI      string   `json:"notes_for_ai,omitempty" gorm:"type:text"`
}

// ScoreOptions 由任务参数得到打分参数
func (j *Job) ScoreOptions() ScoreOptions {
	limit := j.RepoLimit
	if limit <= 0 {
		limit = DefaultRepoLimit
	}
	return ScoreOptions{
		Limit:           limit,
		MaxFilesPerRepo: j.MaxFilesPerRepo,
		Languages:       j.Languages,
	}
}

// JobArtifact 任务产物：原始数据 + 最终报告
type JobArtifact struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey"`
	JobID       string          `json:"job_id" gorm:"type:uuid;not null;index"`
	RawSources  RawSources      `json:"raw_sources" gorm:"serializer:json"`
	Report      *AnalysisReport `json:"report" gorm:"serializer:json"`
	GeneratedAt time.Time       `json:"generated_at" gorm:"autoCreateTime"`
}

// RawSources 生成报告时用到的 GitHub 原始数据
type RawSources struct {
	GitHubRepos []*ScoredRepository `json:"github_repos"`
}

// CreateJobRequest 提交任务的请求体
type CreateJobRequest struct {
	GitHubUsername  string   `json:"github_username" validate:"required,github_username"`
	Skills          []string `json:"skills" validate:"required,min=1,max=20,dive,required,max=50"`
	RepoLimit       int      `json:"repo_limit,omitempty" validate:"omitempty,min=1,max=20"`
	MaxFilesPerRepo int      `json:"max_files_per_repo,omitempty" validate:"omitempty,min=1,max=50"`
	Languages       []string `json:"languages,omitempty" validate:"omitempty,max=10,dive,required,max=50"`
	NotesForAI      string   `json:"notes_for_ai,omitempty" validate:"max=2000"`
}

// GitHub 用户名：字母数字和连字符，不能以连字符开头，最长 39
var githubUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	// 错误信息里用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("github_username", func(fl validator.FieldLevel) bool {
		return githubUsernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate 校验请求
func (r *CreateJobRequest) Validate() error {
	return requestValidator.Struct(r)
}

// JobTicket 提交成功后的回执
type JobTicket struct {
	JobID                string    `json:"job_id"`
	Status               JobStatus `json:"status"`
	EstimatedWaitSeconds int       `json:"estimated_wait_seconds"`
}

// JobView 查询任务时返回的视图
type JobView struct {
	JobID        string          `json:"job_id"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Report       *AnalysisReport `json:"report,omitempty"`
	GeneratedAt  *time.Time      `json:"generated_at,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// SynthesisInput 报告生成的输入
type SynthesisInput struct {
	Username   string
	Skills     []string
	Repos      []*ScoredRepository
	NotesForAI string
}
