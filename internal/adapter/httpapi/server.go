package httpapi

import (
	"context"
	"time"

	"git-gauge/internal/domain"
	"git-gauge/internal/logger"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// JobAPI 对外暴露的任务操作，service.JobService 实现了它
type JobAPI interface {
	Submit(ctx context.Context, req domain.CreateJobRequest) (*domain.JobTicket, error)
	Get(ctx context.Context, id string) (*domain.JobView, error)
	List(ctx context.Context, limit int) ([]*domain.JobView, error)
}

// Options HTTP 层配置
type Options struct {
	AppName   string
	Version   string
	JWTSecret string // 为空时不校验 token
}

// Server 包装 fiber.App
type Server struct {
	app     *fiber.App
	jobs    JobAPI
	opts    Options
	started time.Time
	log     *zap.Logger
}

func NewServer(jobs JobAPI, opts Options, log *zap.Logger) *Server {
	s := &Server{
		jobs:    jobs,
		opts:    opts,
		started: time.Now(),
		log:     logger.OrNop(log),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ErrorHandler: s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.observe())

	s.app.Get("/health", s.health)

	api := s.app.Group("/api/v1")
	if s.opts.JWTSecret != "" {
		api.Use(s.authenticate())
	} else {
		s.log.Warn("未配置 auth.jwt-secret，API 不做鉴权")
	}
	api.Post("/jobs", s.createJob)
	api.Get("/jobs", s.listJobs)
	api.Get("/jobs/:id", s.getJob)
}

// App 暴露底层 fiber.App，测试用
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen 阻塞直到服务关闭
func (s *Server) Listen(addr string) error {
	s.log.Info("HTTP 服务启动", zap.String("addr", addr))
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
