package httpapi

import (
	"strconv"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"

	"github.com/gofiber/fiber/v3"
)

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type listResponse struct {
	Jobs  []*domain.JobView `json:"jobs"`
	Count int               `json:"count"`
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(healthResponse{
		Status:        "healthy",
		Version:       s.opts.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// POST /api/v1/jobs
func (s *Server) createJob(c fiber.Ctx) error {
	var req domain.CreateJobRequest
	if err := c.Bind().Body(&req); err != nil {
		return common.WrapError(common.ErrCodeInvalidInput, "invalid request body", err)
	}

	ticket, err := s.jobs.Submit(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// GET /api/v1/jobs/:id
func (s *Server) getJob(c fiber.Ctx) error {
	view, err := s.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// GET /api/v1/jobs?limit=N
func (s *Server) listJobs(c fiber.Ctx) error {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return err
	}

	views, err := s.jobs.List(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(listResponse{Jobs: views, Count: len(views)})
}

// parseLimit 为空时取默认值，其他情况必须在 [1, 100]
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 10, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, common.NewError(common.ErrCodeInvalidInput, "limit must be an integer between 1 and 100")
	}
	return n, nil
}
