package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// KeyFunc выбирает ключ, по которому считаются запросы.
type KeyFunc func(c *gin.Context) string

// ByClientIP ключ по IP клиента.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUserOrIP ключ по пользователю, если он уже авторизован.
func ByUserOrIP(c *gin.Context) string {
	if userID, ok := c.Get(ContextUserIDKey); ok {
		return fmt.Sprintf("user:%v", userID)
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware ограничивает число запросов за период.
func RateLimitMiddleware(limit int64, period time.Duration, key KeyFunc) gin.HandlerFunc {
	if limit <= 0 {
		limit = 60
	}
	if period <= 0 {
		period = time.Minute
	}
	if key == nil {
		key = ByClientIP
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		context, err := instance.Get(c, key(c))
		if err != nil {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodeInternal, "ошибка лимитера"))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", context.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", context.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", context.Reset))

		if context.Reached {
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			c.Abort()
			return
		}

		c.Next()
	}
}
