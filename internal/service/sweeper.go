package service

import (
	"context"
	"fmt"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"
	"git-gauge/internal/port"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultStaleAfter    = 30 * time.Minute
	DefaultSweepSchedule = "@every 5m"
	sweepBatch           = 100
)

// InFlight 报告当前进程正在处理的任务
type InFlight interface {
	CurrentJob() string
}

// Sweeper 定时巡检滞留的任务
// running 太久 (进程中途退出) 的标记失败，queued 太久 (入队失败) 的重新入队
type Sweeper struct {
	store      port.RecordStore
	queue      port.JobQueue
	cache      port.StatusCache
	inFlight   InFlight
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewSweeper(store port.RecordStore, queue port.JobQueue, cache port.StatusCache, inFlight InFlight, staleAfter time.Duration, log *zap.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Sweeper{
		store:      store,
		queue:      queue,
		cache:      cache,
		inFlight:   inFlight,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        logger.OrNop(log),
	}
}

// Sweep 执行一次巡检
func (s *Sweeper) Sweep(ctx context.Context) (requeued, failed int, err error) {
	before := s.now().Add(-s.staleAfter)

	running, err := s.store.ListStaleJobs(ctx, domain.JobRunning, before, sweepBatch)
	if err != nil {
		return 0, 0, err
	}
	current := ""
	if s.inFlight != nil {
		current = s.inFlight.CurrentJob()
	}
	for _, job := range running {
		if job.ID == current {
			continue
		}
		msg := fmt.Sprintf("job abandoned while running (no progress since %s)", job.UpdatedAt.UTC().Format(time.RFC3339))
		if err := s.store.UpdateJobStatus(ctx, job.ID, domain.JobFailed, common.ErrCodeProcessing, msg); err != nil {
			s.log.Warn("标记滞留任务失败时出错", zap.String(logger.FieldJobID, job.ID), zap.Error(err))
			continue
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, StatusKey(job.ID), string(domain.JobFailed), DefaultStatusTTL)
			_ = s.cache.Set(ctx, ErrorKey(job.ID), msg, DefaultStatusTTL)
			_ = s.cache.Set(ctx, ErrorCodeKey(job.ID), common.ErrCodeProcessing, DefaultStatusTTL)
		}
		failed++
	}

	queued, err := s.store.ListStaleJobs(ctx, domain.JobQueued, before, sweepBatch)
	if err != nil {
		return requeued, failed, err
	}
	for _, job := range queued {
		// 先刷新 updated_at，同一个任务每个滞留周期最多补投一次
		// 期间被消费者拿走的任务这里会返回 NOT_FOUND，直接跳过
		if err := s.store.TouchJob(ctx, job.ID, domain.JobQueued, s.now()); err != nil {
			if !common.IsCode(err, common.ErrCodeNotFound) {
				s.log.Warn("刷新滞留任务时间失败", zap.String(logger.FieldJobID, job.ID), zap.Error(err))
			}
			continue
		}
		// 队列里可能还留着旧的一份，消费时非 queued 的任务会被跳过
		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			s.log.Warn("滞留任务重新入队失败", zap.String(logger.FieldJobID, job.ID), zap.Error(err))
			continue
		}
		requeued++
	}

	if requeued > 0 || failed > 0 {
		s.log.Info("巡检完成", zap.Int("requeued", requeued), zap.Int("failed", failed))
	}
	return requeued, failed, nil
}

// Schedule 按 cron 表达式注册巡检，返回的 Cron 需要调用方 Start/Stop
func (s *Sweeper) Schedule(schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, _, err := s.Sweep(ctx); err != nil {
			s.log.Error("巡检失败", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return c, nil
}
