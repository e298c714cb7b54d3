package memory

import (
	"context"
	"time"

	"git-gauge/internal/common"
)

// DefaultQueueSize 进程内队列容量
const DefaultQueueSize = 1024

// Queue 基于带缓冲 channel 的先进先出队列，实现 port.JobQueue
// 只在单进程部署 (queue.driver=memory) 或测试时使用
type Queue struct {
	ch chan string
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan string, size)}
}

// Enqueue 队列满时直接返回错误，不阻塞提交方
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return common.NewError(common.ErrCodeInternal, "job queue is full")
	}
}

// Dequeue 最多等待 wait，超时返回 ("", false, nil)
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (string, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (q *Queue) Len(context.Context) (int, error) {
	return len(q.ch), nil
}
