package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/http/response"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const paramIDsKey = "uuidParams"

// UUIDValidator проверяет, что параметры являются валидными UUID, и кладёт их в контекст.
// Использование: router.GET("/orders/:id", UUIDValidator("id"), handler.GetOrder)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			id, err := uuid.Parse(c.Param(name))
			if err != nil {
				response.Abort(c, apperror.Newf(apperror.ErrCodeBadRequest, "параметр %s должен быть валидным UUID", name))
				return
			}
			c.Set(paramIDsKey+"."+name, id)
		}
		c.Next()
	}
}

// ParamID возвращает UUID, проверенный UUIDValidator.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	v, ok := c.Get(paramIDsKey + "." + name)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
