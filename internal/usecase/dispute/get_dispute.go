package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type GetDisputeUseCase struct {
	disputeRepo repository.DisputeRepository
}

func NewGetDisputeUseCase(disputeRepo repository.DisputeRepository) *GetDisputeUseCase {
	return &GetDisputeUseCase{disputeRepo: disputeRepo}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, disputeID uuid.UUID, actor entity.Actor) (*entity.Dispute, error) {
	d, err := uc.disputeRepo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.CanBeViewedBy(actor) {
		return nil, apperror.ErrDisputeNotFound
	}
	return d, nil
}

// ListOrderDisputesUseCase возвращает историю споров заказа, старые первыми.
type ListOrderDisputesUseCase struct {
	orderRepo   repository.OrderRepository
	disputeRepo repository.DisputeRepository
}

func NewListOrderDisputesUseCase(orderRepo repository.OrderRepository, disputeRepo repository.DisputeRepository) *ListOrderDisputesUseCase {
	return &ListOrderDisputesUseCase{orderRepo: orderRepo, disputeRepo: disputeRepo}
}

func (uc *ListOrderDisputesUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor entity.Actor) ([]*entity.Dispute, error) {
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeViewedBy(actor) {
		return nil, apperror.ErrOrderNotFound
	}
	return uc.disputeRepo.ListByOrderID(ctx, orderID)
}
