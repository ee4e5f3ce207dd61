package notify

import (
	"context"
	"fmt"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

// SettlementHook превращает переходы, двигающие деньги, в поручения платёжному провайдеру.
type SettlementHook struct {
	journal repository.SettlementJournal
}

func NewSettlementHook(journal repository.SettlementJournal) *SettlementHook {
	return &SettlementHook{journal: journal}
}

func (h *SettlementHook) OnOrderStatusChanged(ctx context.Context, c OrderStatusChange) error {
	instructions, err := Instructions(c)
	if err != nil {
		return err
	}
	for _, in := range instructions {
		if err := h.journal.Record(ctx, in); err != nil {
			return fmt.Errorf("record %s for order %s: %w", in.Kind, in.OrderID, err)
		}
	}
	return nil
}

// Instructions вычисляет поручения для перехода. Переходы без движения денег дают пустой список.
// Выплата и возврат возможны только по заказу, который был профинансирован.
func Instructions(c OrderStatusChange) ([]*entity.SettlementInstruction, error) {
	reason := string(c.Action)
	switch {
	case c.To == valueobject.OrderStatusEscrowFunded && c.From == valueobject.OrderStatusPlaced:
		return []*entity.SettlementInstruction{
			entity.NewSettlementInstruction(c.OrderID, entity.SettlementHold, c.BuyerID, c.Price, reason, c.At),
		}, nil

	case !c.Funded:
		return nil, nil

	case c.To == valueobject.OrderStatusReleased:
		return []*entity.SettlementInstruction{
			entity.NewSettlementInstruction(c.OrderID, entity.SettlementRelease, c.SellerID, c.Price, reason, c.At),
		}, nil

	case c.To == valueobject.OrderStatusRefunded:
		refund := c.Price
		if c.RefundAmount != nil {
			refund = *c.RefundAmount
		}
		out := []*entity.SettlementInstruction{
			entity.NewSettlementInstruction(c.OrderID, entity.SettlementRefund, c.BuyerID, refund, reason, c.At),
		}
		if refund.Less(c.Price) {
			rest, err := remainder(c.Price, refund)
			if err != nil {
				return nil, err
			}
			out = append(out, entity.NewSettlementInstruction(c.OrderID, entity.SettlementRelease, c.SellerID, rest, reason, c.At))
		}
		return out, nil

	case c.To == valueobject.OrderStatusRejected || c.To == valueobject.OrderStatusCancelled:
		return []*entity.SettlementInstruction{
			entity.NewSettlementInstruction(c.OrderID, entity.SettlementRefund, c.BuyerID, c.Price, reason, c.At),
		}, nil
	}
	return nil, nil
}

func remainder(price, refund valueobject.Money) (valueobject.Money, error) {
	rest, err := price.Amount.Sub(refund.Amount)
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("settlement remainder: %w", err)
	}
	return valueobject.Money{Amount: rest, Currency: price.Currency}, nil
}
