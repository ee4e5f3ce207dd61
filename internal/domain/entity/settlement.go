package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

type SettlementKind string

const (
	SettlementHold    SettlementKind = "hold"
	SettlementRelease SettlementKind = "release"
	SettlementRefund  SettlementKind = "refund"
)

// SettlementInstruction описывает поручение на движение средств escrow.
// Само движение выполняет внешний платёжный провайдер.
type SettlementInstruction struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Kind          SettlementKind
	BeneficiaryID uuid.UUID
	Amount        valueobject.Money
	Reason        string
	CreatedAt     time.Time
}

func NewSettlementInstruction(orderID uuid.UUID, kind SettlementKind, beneficiary uuid.UUID, amount valueobject.Money, reason string, now time.Time) *SettlementInstruction {
	return &SettlementInstruction{
		ID:            uuid.New(),
		OrderID:       orderID,
		Kind:          kind,
		BeneficiaryID: beneficiary,
		Amount:        amount,
		Reason:        reason,
		CreatedAt:     now,
	}
}
