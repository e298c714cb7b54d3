package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultQueueKey 任务队列使用的 list
const DefaultQueueKey = "queue:jobs"

// Config Redis 连接配置
type Config struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

// Redis 同时实现 port.StatusCache 和 port.JobQueue
// 连不上 Redis 时缓存退化为空操作，队列操作返回错误
type Redis struct {
	client   *redis.Client
	queueKey string
	log      *zap.Logger

	warnedUnavailable atomic.Bool
}

// NewRedis 建立连接并 Ping 一次，失败时返回不可用实例
func NewRedis(cfg Config, log *zap.Logger) *Redis {
	log = logger.OrNop(log)
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis 不可用，跳过缓存", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return &Redis{queueKey: queueKey(cfg.QueueKey), log: log}
	}

	return newRedisWithClient(client, cfg.QueueKey, log)
}

func newRedisWithClient(client *redis.Client, key string, log *zap.Logger) *Redis {
	return &Redis{client: client, queueKey: queueKey(key), log: logger.OrNop(log)}
}

func queueKey(key string) string {
	if strings.TrimSpace(key) == "" {
		return DefaultQueueKey
	}
	return key
}

// Available 是否连上了 Redis
func (r *Redis) Available() bool {
	return r != nil && r.client != nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn("Redis 调用失败", zap.Error(err))
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if !r.Available() {
		return common.NewError(common.ErrCodeInternal, "redis unavailable")
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if !r.Available() {
		return nil
	}
	return r.client.Close()
}

// Set 写入带过期时间的字符串
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !r.Available() {
		return nil
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// Get key 不存在时返回 ("", false, nil)
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if !r.Available() {
		return "", false, nil
	}
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		r.warnUnavailableOnce(err)
		return "", false, err
	}
	return v, true, nil
}

// Enqueue LPUSH，配合 BRPOP 实现先进先出
func (r *Redis) Enqueue(ctx context.Context, jobID string) error {
	if !r.Available() {
		return common.NewError(common.ErrCodeInternal, "redis unavailable, cannot enqueue")
	}
	return r.client.LPush(ctx, r.queueKey, jobID).Err()
}

// Dequeue BRPOP，最多阻塞 wait (Redis 最小精度 1 秒)
func (r *Redis) Dequeue(ctx context.Context, wait time.Duration) (string, bool, error) {
	if !r.Available() {
		return "", false, common.NewError(common.ErrCodeInternal, "redis unavailable, cannot dequeue")
	}
	res, err := r.client.BRPop(ctx, wait, r.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	// res = [key, value]
	if len(res) != 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Len 队列长度
func (r *Redis) Len(ctx context.Context) (int, error) {
	if !r.Available() {
		return 0, nil
	}
	n, err := r.client.LLen(ctx, r.queueKey).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
