package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type GetOrderUseCase struct {
	orderRepo repository.OrderRepository
}

func NewGetOrderUseCase(orderRepo repository.OrderRepository) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo}
}

// Execute возвращает заказ. Для посторонних заказ как будто не существует.
func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor entity.Actor) (*entity.Order, error) {
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeViewedBy(actor) {
		return nil, apperror.ErrOrderNotFound
	}
	return order, nil
}

type ListOrdersInput struct {
	Actor  entity.Actor
	Status string
	Limit  int
	Offset int
}

type ListOrdersUseCase struct {
	orderRepo repository.OrderRepository
}

func NewListOrdersUseCase(orderRepo repository.OrderRepository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orderRepo: orderRepo}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Execute возвращает заказы участника, новые первыми. Администратор видит все заказы.
func (uc *ListOrdersUseCase) Execute(ctx context.Context, input ListOrdersInput) ([]*entity.Order, int, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	filter := repository.OrderFilter{
		ParticipantID: input.Actor.ID,
		Status:        input.Status,
		Limit:         limit,
		Offset:        offset,
	}
	if input.Actor.IsAdmin() {
		filter.ParticipantID = uuid.Nil
	}
	return uc.orderRepo.ListByParticipant(ctx, filter)
}
