// Package actor собирает участника запроса по справочнику.
package actor

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// Resolve строит актора по справочнику: роль и право администрирования.
// Неизвестный участник получает ActorNotAuthorized.
func Resolve(ctx context.Context, directory repository.ActorDirectory, actorID uuid.UUID) (entity.Actor, error) {
	role, err := directory.ResolveRole(ctx, actorID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return entity.Actor{}, apperror.ErrActorNotAuthorized
		}
		return entity.Actor{}, err
	}
	admin, err := directory.HasCapability(ctx, actorID, valueobject.CapabilityAdminister)
	if err != nil {
		return entity.Actor{}, err
	}
	return entity.Actor{ID: actorID, Role: role, Admin: admin}, nil
}
