package main

import (
	"context"
	"time"

	"git-gauge/internal/adapter/analyzer"
	"git-gauge/internal/adapter/cache"
	"git-gauge/internal/adapter/gemini"
	"git-gauge/internal/adapter/github"
	"git-gauge/internal/adapter/memory"
	"git-gauge/internal/adapter/openai"
	"git-gauge/internal/config"
	"git-gauge/internal/port"
	"git-gauge/internal/service"

	"go.uber.org/zap"
)

func buildScorer(cfg *config.Config, log *zap.Logger) *analyzer.RepoScorer {
	host := github.NewHost(github.Config{
		Token:             cfg.GitHub.Token,
		Timeout:           cfg.GitHub.Timeout,
		PerPage:           cfg.GitHub.PerPage,
		MaxPages:          cfg.GitHub.MaxPages,
		MaxRetries:        cfg.GitHub.MaxRetries,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, log)
	if cfg.GitHub.Token == "" {
		log.Warn("未配置 GITHUB_TOKEN，匿名访问限制 60 次/小时")
	}

	scorer := analyzer.NewRepoScorer(host, log)
	scorer.SetMaxGoroutines(cfg.GitHub.Concurrency)
	return scorer
}

// buildGenerator 按 ai.provider 创建模型客户端
// 返回 nil 表示只用规则兜底
func buildGenerator(ctx context.Context, cfg *config.Config, log *zap.Logger) (port.ReportGenerator, func(), error) {
	noop := func() {}

	switch cfg.AI.Provider {
	case config.ProviderNone:
		log.Info("ai.provider=none，只使用规则生成报告")
		return nil, noop, nil
	case config.ProviderOpenAI:
		if cfg.AI.APIKey == "" {
			log.Warn("未配置 AI_API_KEY，只使用规则生成报告")
			return nil, noop, nil
		}
		gen, err := openai.NewGenerator(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, noop, err
		}
		return gen, noop, nil
	default:
		if cfg.AI.APIKey == "" {
			log.Warn("未配置 AI_API_KEY，只使用规则生成报告")
			return nil, noop, nil
		}
		gen, err := gemini.NewGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, noop, err
		}
		return gen, func() { _ = gen.Close() }, nil
	}
}

func buildSynthesizer(gen port.ReportGenerator, cfg *config.Config, log *zap.Logger) *service.ReportSynthesizer {
	synth := service.NewReportSynthesizer(gen, port.GenerationOptions{
		MaxOutputTokens: cfg.AI.MaxTokens,
		Temperature:     cfg.AI.Temperature,
		Timeout:         cfg.AI.Timeout,
	}, log)
	synth.SetRetry(cfg.AI.MaxRetries, time.Second)
	return synth
}

// buildQueue 按 queue.driver 选择队列和状态缓存，Redis 连不上时退回进程内实现
func buildQueue(cfg *config.Config, log *zap.Logger) (port.JobQueue, port.StatusCache, func()) {
	if cfg.Queue.Driver == config.QueueRedis {
		r := cache.NewRedis(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if r.Available() {
			return r, r, func() { _ = r.Close() }
		}
		log.Warn("Redis 不可用，改用进程内队列，重启后由巡检恢复排队任务")
	}
	return memory.NewQueue(memory.DefaultQueueSize), memory.NewCache(), func() {}
}
