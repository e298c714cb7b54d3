package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git-gauge/internal/adapter/discord"
	"git-gauge/internal/adapter/httpapi"
	"git-gauge/internal/adapter/repository"
	"git-gauge/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, "stdout")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 存储
	store, err := repository.NewPostgresRepo(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer func() { _ = store.Close() }()

	queue, statusCache, closeQueue := buildQueue(cfg, log)
	defer closeQueue()

	// 2. 流水线
	gen, closeGen, err := buildGenerator(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("初始化模型失败: %w", err)
	}
	defer closeGen()

	orchestrator := service.NewJobOrchestrator(
		buildScorer(cfg, log),
		buildSynthesizer(gen, cfg, log),
		store,
		statusCache,
		discord.NewNotifier(cfg.Webhook.DiscordURL, log),
		log,
	)
	orchestrator.SetStatusTTL(cfg.Redis.TTL)

	jobs := service.NewJobService(store, queue, statusCache, log)
	jobs.SetStatusTTL(cfg.Redis.TTL)
	jobs.SetEstimatedJobSeconds(cfg.Worker.EstimatedJobSeconds)

	worker := service.NewWorker(queue, orchestrator, log)
	worker.SetIntervals(cfg.Worker.IdleInterval, cfg.Worker.ErrorBackoff)

	// 3. 巡检：启动时先跑一次，之后按计划执行
	sweeper := service.NewSweeper(store, queue, statusCache, worker, cfg.Worker.StaleAfter, log)
	if _, _, err := sweeper.Sweep(ctx); err != nil {
		log.Warn("启动巡检失败", zap.Error(err))
	}
	scheduler, err := sweeper.Schedule(cfg.Worker.SweepSchedule)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := httpapi.NewServer(jobs, httpapi.Options{
		AppName:   cfg.App.Name,
		Version:   cfg.App.Version,
		JWTSecret: cfg.Auth.JWTSecret,
	}, log)

	// 4. HTTP 和消费者同生共死
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(fmt.Sprintf(":%d", cfg.App.HTTPPort))
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("服务已启动",
		zap.Int("port", cfg.App.HTTPPort),
		zap.String("queue", cfg.Queue.Driver),
		zap.String("ai_provider", cfg.AI.Provider))
	return g.Wait()
}
