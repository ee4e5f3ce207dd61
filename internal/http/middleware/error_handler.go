package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/http/response"
)

// ErrorHandler отвечает на ошибки, добавленные обработчиками через c.Error,
// и логирует внутренние. Маскирует детали 5xx ошибок.
func ErrorHandler(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, info := response.Describe(err)

		entry := log.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": status,
			"code":   info.Code,
		}).WithError(err)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Debug("request rejected")
		}

		if !c.Writer.Written() {
			c.JSON(status, response.Response{Success: false, Error: &info})
		}
	}
}

// Recovery превращает панику обработчика в 500 с тем же телом ошибки.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"panic": recovered,
		}).Error("panic in handler")
		status, info := response.Describe(nil)
		c.AbortWithStatusJSON(status, response.Response{Success: false, Error: &info})
	})
}
