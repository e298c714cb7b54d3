package httpapi

import (
	"fmt"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"

	localRequestID = "request_id"
	localSubject   = "subject"
)

// observe 生成 request id，兜住 panic，统一写错误响应并记录访问日志
// 错误在这里就写好响应，日志里的状态码才是最终的
func (s *Server) observe() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		start := time.Now()

		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(localRequestID, rid)

		defer func() {
			if r := recover(); r != nil {
				err = s.handleError(c, common.NewError(common.ErrCodeInternal, fmt.Sprintf("panic: %v", r)))
			}
			s.log.Info("HTTP access",
				zap.String(logger.FieldRequestID, rid),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.IP()))
		}()

		if err = c.Next(); err != nil {
			err = s.handleError(c, err)
		}
		return err
	}
}

// authenticate 校验 Authorization: Bearer <token>
func (s *Server) authenticate() fiber.Handler {
	secret := []byte(s.opts.JWTSecret)
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return common.NewError(common.ErrCodeUnauthorized, "missing bearer token")
		}
		claims, err := ParseToken(secret, token)
		if err != nil {
			return common.WrapError(common.ErrCodeUnauthorized, "invalid token", err)
		}
		c.Locals(localSubject, claims.Subject)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
