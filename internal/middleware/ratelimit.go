package middleware

import (
	"fmt"
	"time"

	"github.com/dealroom/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware is a fixed-window counter per client IP. It fails open
// when redis is unreachable.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secs := int64(window / time.Second)
		if secs < 1 {
			secs = 1
		}
		bucket := time.Now().Unix() / secs
		key := fmt.Sprintf("rl:%s:%d", c.IP(), bucket)

		ctx := c.UserContext()
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn("rate limit check failed", zap.Error(err))
			return c.Next()
		}

		remaining := int64(limit) - incr.Val()
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", fmt.Sprint(limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprint(remaining))

		if incr.Val() > int64(limit) {
			reqID, _ := c.Locals(CtxRequestID).(string)
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Error: "rate limit exceeded", RequestID: reqID})
		}

		return c.Next()
	}
}
