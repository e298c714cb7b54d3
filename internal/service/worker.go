package service

import (
	"context"
	"sync/atomic"
	"time"

	"git-gauge/internal/logger"
	"git-gauge/internal/port"

	"go.uber.org/zap"
)

// 轮询间隔
const (
	DefaultIdleInterval = time.Second
	DefaultErrorBackoff = 5 * time.Second
)

// JobProcessor 处理单个任务
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// Worker 单消费者：一次只处理一个任务
type Worker struct {
	queue     port.JobQueue
	processor JobProcessor

	idleInterval time.Duration
	errorBackoff time.Duration

	current atomic.Value // string，正在处理的任务
	log     *zap.Logger
}

func NewWorker(queue port.JobQueue, processor JobProcessor, log *zap.Logger) *Worker {
	w := &Worker{
		queue:        queue,
		processor:    processor,
		idleInterval: DefaultIdleInterval,
		errorBackoff: DefaultErrorBackoff,
		log:          logger.OrNop(log),
	}
	w.current.Store("")
	return w
}

// SetIntervals 空轮询间隔和出错后的退避时间
func (w *Worker) SetIntervals(idle, backoff time.Duration) {
	if idle > 0 {
		w.idleInterval = idle
	}
	if backoff > 0 {
		w.errorBackoff = backoff
	}
}

// CurrentJob 正在处理的任务 id，空闲时为空串
func (w *Worker) CurrentJob() string {
	return w.current.Load().(string)
}

// Run 阻塞直到 ctx 取消
// 已经开始的任务不会被取消，会一直跑到终态
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("任务消费者已启动",
		zap.Duration("idle_interval", w.idleInterval),
		zap.Duration("error_backoff", w.errorBackoff))

	for {
		if ctx.Err() != nil {
			w.log.Info("任务消费者已停止")
			return nil
		}

		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("拉取任务出错，稍后重试", zap.Error(err))
			sleep(ctx, w.errorBackoff)
		}
	}
}

// poll 最多等待 idleInterval 取一个任务并处理
func (w *Worker) poll(ctx context.Context) error {
	jobID, ok, err := w.queue.Dequeue(ctx, w.idleInterval)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	w.current.Store(jobID)
	defer w.current.Store("")

	// 与外部取消解耦
	if err := w.processor.Process(context.WithoutCancel(ctx), jobID); err != nil {
		w.log.Warn("任务处理结束 (失败)", zap.String(logger.FieldJobID, jobID), zap.Error(err))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
