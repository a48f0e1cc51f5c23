package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// ErrorHandler отдаёт ошибку, положенную через c.Error, если хендлер сам ничего не ответил.
// Внутренние ошибки маскируются в response.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   apperror.CodeOf(err),
		}).WithError(err).Error("ошибка запроса")

		response.Error(c, err)
	}
}

// RequestLogger пишет одну строку на запрос.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		entry := logger.Log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(started).String(),
			"ip":       c.ClientIP(),
		})
		if userID, ok := c.Get(ContextUserIDKey); ok {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Warn("запрос завершился ошибкой")
		default:
			entry.Debug("запрос обработан")
		}
	}
}
