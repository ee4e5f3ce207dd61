package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
)

// SettlementJournal хранит поручения платёжному провайдеру.
type SettlementJournal interface {
	Record(ctx context.Context, instruction *entity.SettlementInstruction) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.SettlementInstruction, error)
}
