package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/pkg/keylock"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

type UpdateScopeInput struct {
	OrderID uuid.UUID    `json:"-"`
	Actor   entity.Actor `json:"-"`
	Scope   ScopeInput   `json:"scope"`
}

// UpdateScopeUseCase правит описание работы до внесения средств.
type UpdateScopeUseCase struct {
	uow   repository.UnitOfWork
	locks *keylock.Locker
}

func NewUpdateScopeUseCase(uow repository.UnitOfWork, locks *keylock.Locker) *UpdateScopeUseCase {
	return &UpdateScopeUseCase{uow: uow, locks: locks}
}

func (uc *UpdateScopeUseCase) Execute(ctx context.Context, input UpdateScopeInput) (*entity.Order, error) {
	unlock, ok := uc.locks.TryLock(keylock.OrderKey(input.OrderID))
	if !ok {
		return nil, apperror.ErrConcurrentModification
	}
	defer unlock()

	var result *entity.Order
	err := uc.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.CanBeViewedBy(input.Actor) {
			return apperror.ErrOrderNotFound
		}
		if err := validation.Struct(input); err != nil {
			return err
		}
		scope, err := input.Scope.toEntity()
		if err != nil {
			return err
		}

		expected := order.Version
		if err := order.UpdateScope(input.Actor, scope, time.Now().UTC()); err != nil {
			return err
		}
		if err := repos.Orders.UpdateScope(ctx, order, expected); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
