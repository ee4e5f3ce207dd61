package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// currentActor извлекает участника, установленного AuthMiddleware.
func currentActor(c *gin.Context) (entity.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return entity.Actor{}, apperror.ErrUnauthorized
	}
	return actor, nil
}

// parseUUIDParam читает UUID из параметра пути.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	if id, ok := middleware.ParamID(c, name); ok {
		return id, nil
	}
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Newf(apperror.ErrCodeBadRequest, "параметр %s должен быть валидным UUID", name)
	}
	return id, nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// pagination читает limit и offset. Границы окончательно применяет use case.
func pagination(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", 0)
	offset = parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса")
	}
	return nil
}
