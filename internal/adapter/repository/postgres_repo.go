package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresRepo 实现了 port.RecordStore 接口
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	// 1. 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库失败", err)
	}

	// 2. 自动迁移 jobs / job_artifacts 两张表
	if err := db.AutoMigrate(&domain.Job{}, &domain.JobArtifact{}); err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "数据库迁移失败", err)
	}

	return &PostgresRepo{db: db}, nil
}

// Close 关闭底层连接池
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateJob 新建任务，ID 为空时自动生成
func (r *PostgresRepo) CreateJob(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "创建任务失败", err)
	}
	return nil
}

// GetJob 按 ID 查询任务
func (r *PostgresRepo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.WrapError(common.ErrCodeNotFound, fmt.Sprintf("job %s not found", id), err)
		}
		return nil, common.WrapError(common.ErrCodeDatabase, "查询任务失败", err)
	}
	return &job, nil
}

// UpdateJobStatus 条件更新：只有当前状态允许转移到 status 时才会写入
func (r *PostgresRepo) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errorCode, errorMessage string) error {
	prev := domain.PreviousStatuses(status)
	if len(prev) == 0 {
		return common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("no transition leads to status %q", status))
	}

	// UPDATE jobs SET ... WHERE id = ? AND status IN (...)
	result := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status IN ?", id, prev).
		Updates(map[string]interface{}{
			"status":        status,
			"error_code":    errorCode,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return common.WrapError(common.ErrCodeDatabase, "更新任务状态失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NewError(common.ErrCodeNotFound,
			fmt.Sprintf("job %s not found or cannot move to %s", id, status))
	}
	return nil
}

// ListRecentJobs 按创建时间倒序取最近的任务
func (r *PostgresRepo) ListRecentJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询任务列表失败", err)
	}
	return jobs, nil
}

// ListStaleJobs 查询长时间没有推进的任务，给巡检用
func (r *PostgresRepo) ListStaleJobs(ctx context.Context, status domain.JobStatus, before time.Time, limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询滞留任务失败", err)
	}
	return jobs, nil
}

// TouchJob 只刷新 updated_at，巡检重新入队前调用
func (r *PostgresRepo) TouchJob(ctx context.Context, id string, status domain.JobStatus, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, status).
		Update("updated_at", at.UTC())
	if result.Error != nil {
		return common.WrapError(common.ErrCodeDatabase, "刷新任务时间失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NewError(common.ErrCodeNotFound, fmt.Sprintf("job %s not found or no longer %s", id, status))
	}
	return nil
}

// CreateArtifact 保存任务产物
func (r *PostgresRepo) CreateArtifact(ctx context.Context, artifact *domain.JobArtifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(artifact).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存任务产物失败", err)
	}
	return nil
}

// GetArtifactByJobID 取任务最新的产物
func (r *PostgresRepo) GetArtifactByJobID(ctx context.Context, jobID string) (*domain.JobArtifact, error) {
	var artifact domain.JobArtifact
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("generated_at DESC").
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.WrapError(common.ErrCodeNotFound, fmt.Sprintf("artifact for job %s not found", jobID), err)
		}
		return nil, common.WrapError(common.ErrCodeDatabase, "查询任务产物失败", err)
	}
	return &artifact, nil
}
