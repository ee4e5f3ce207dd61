// Package notify доставляет сведения о переходах заказа подписчикам:
// WebSocket-клиентам, брокеру сообщений и журналу расчётов.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

const EventOrderStatusChanged = "order.status_changed"

// OrderStatusChange описывает один фактический переход заказа.
type OrderStatusChange struct {
	OrderID      uuid.UUID               `json:"order_id"`
	BuyerID      uuid.UUID               `json:"buyer_id"`
	SellerID     uuid.UUID               `json:"seller_id"`
	DisputeID    *uuid.UUID              `json:"dispute_id,omitempty"`
	Action       valueobject.OrderAction `json:"action"`
	From         valueobject.OrderStatus `json:"from_status"`
	To           valueobject.OrderStatus `json:"to_status"`
	ActorRole    valueobject.Role        `json:"actor_role"`
	Note         string                  `json:"note,omitempty"`
	Price        valueobject.Money       `json:"price"`
	RefundAmount *valueobject.Money      `json:"refund_amount,omitempty"`
	Funded       bool                    `json:"funded"`
	At           time.Time               `json:"at"`
}

// Hook получает уведомления после фиксации перехода. Ошибка хука не влияет на переход.
type Hook interface {
	OnOrderStatusChanged(ctx context.Context, change OrderStatusChange) error
}

// HookFunc позволяет использовать функцию как Hook.
type HookFunc func(ctx context.Context, change OrderStatusChange) error

func (f HookFunc) OnOrderStatusChanged(ctx context.Context, change OrderStatusChange) error {
	return f(ctx, change)
}

// Notifier отправляет уведомления, не дожидаясь подписчиков.
type Notifier interface {
	Notify(ctx context.Context, changes ...OrderStatusChange)
}

// Changes собирает уведомления по переходам заказа. refund задаётся, когда решение
// спора определило сумму возврата покупателю.
func Changes(order *entity.Order, changes []entity.StatusChange, refund *valueobject.Money) []OrderStatusChange {
	funded := order.WasFunded()
	out := make([]OrderStatusChange, 0, len(changes))
	for _, c := range changes {
		ev := OrderStatusChange{
			OrderID:   order.ID,
			BuyerID:   order.BuyerID,
			SellerID:  order.SellerID,
			Action:    c.Action,
			From:      c.From,
			To:        c.To,
			ActorRole: c.ActorRole,
			Note:      c.Note,
			Price:     order.Scope.Price,
			Funded:    funded,
			At:        c.At,
		}
		if order.DisputeID != nil {
			id := *order.DisputeID
			ev.DisputeID = &id
		}
		if refund != nil && c.To == valueobject.OrderStatusRefunded {
			amount := *refund
			ev.RefundAmount = &amount
		}
		out = append(out, ev)
	}
	return out
}
