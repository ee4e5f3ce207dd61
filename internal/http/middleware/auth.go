package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/http/response"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/service"
	"github.com/ignatzorin/escrow-backend/internal/usecase/actor"
)

// ContextActorKey задаёт ключ gin.Context, под которым лежит entity.Actor.
const ContextActorKey = "actor"

// AuthMiddleware проверяет JWT access токен и достаёт роль участника из справочника.
func AuthMiddleware(tokens *service.TokenManager, directory repository.ActorDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			response.Abort(c, apperror.ErrUnauthorized)
			return
		}

		actorID, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Abort(c, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		current, err := actor.Resolve(c.Request.Context(), directory, actorID)
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ContextActorKey, current)
		c.Next()
	}
}

// CurrentActor возвращает участника, установленного AuthMiddleware.
func CurrentActor(c *gin.Context) (entity.Actor, bool) {
	raw, ok := c.Get(ContextActorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := raw.(entity.Actor)
	return actor, ok
}
