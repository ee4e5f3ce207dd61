package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	// Save сохраняет статус, журнал и поля заказа, если версия в хранилище равна expectedVersion.
	// При успехе order.Version увеличивается.
	Save(ctx context.Context, order *entity.Order, expectedVersion int64) error
	UpdateScope(ctx context.Context, order *entity.Order, expectedVersion int64) error
	ListByParticipant(ctx context.Context, filter OrderFilter) ([]*entity.Order, int, error)
}

type OrderFilter struct {
	ParticipantID uuid.UUID
	Status        string
	Limit         int
	Offset        int
}

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	// FindActiveByOrderID возвращает nil, nil, если активного спора нет.
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error)
	Save(ctx context.Context, dispute *entity.Dispute, expectedVersion int64) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error)
}
