package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// ScopeBox описывает работу по заказу.
type ScopeBox struct {
	Title        string
	Description  string
	Deliverables []string
	Deadline     time.Time
	Price        valueobject.Money
	Extra        map[string]string
}

// ContactInfo содержит описательные поля сделки. На переходы они не влияют.
type ContactInfo struct {
	BuyerName         string
	BuyerEmail        string
	Platform          string
	ProductLink       string
	Country           string
	Currency          string
	SellerContact     string
	EscrowLink        string
	OrderTrackingLink string
}

// OrderLog описывает неизменяемую запись журнала заказа.
type OrderLog struct {
	At         time.Time
	ActorID    *uuid.UUID
	ActorRole  valueobject.Role
	Action     valueobject.OrderAction
	FromStatus valueobject.OrderStatus
	ToStatus   valueobject.OrderStatus
	Note       string
}

type Order struct {
	ID            uuid.UUID
	BuyerID       uuid.UUID
	SellerID      uuid.UUID
	Scope         ScopeBox
	Status        valueobject.OrderStatus
	DeliveryFiles []string
	DisputeID     *uuid.UUID
	Logs          []OrderLog
	Contact       ContactInfo
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewOrder(buyerID, sellerID uuid.UUID, scope ScopeBox, contact ContactInfo, now time.Time) (*Order, error) {
	if buyerID == uuid.Nil || sellerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец обязательны")
	}
	if buyerID == sellerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец должны различаться")
	}
	if err := scope.Validate(now); err != nil {
		return nil, err
	}
	if contact.Currency == "" {
		contact.Currency = scope.Price.Currency
	}

	return &Order{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Scope:     scope.clone(),
		Status:    valueobject.OrderStatusPlaced,
		Contact:   contact,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate проверяет описание работы на момент now.
func (s ScopeBox) Validate(now time.Time) error {
	if strings.TrimSpace(s.Title) == "" {
		return apperror.New(apperror.ErrCodeValidation, "название заказа обязательно")
	}
	if strings.TrimSpace(s.Description) == "" {
		return apperror.New(apperror.ErrCodeValidation, "описание заказа обязательно")
	}
	if len(s.Deliverables) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один результат работы")
	}
	for _, d := range s.Deliverables {
		if strings.TrimSpace(d) == "" {
			return apperror.New(apperror.ErrCodeValidation, "результат работы не может быть пустым")
		}
	}
	if s.Deadline.IsZero() || !s.Deadline.After(now) {
		return apperror.New(apperror.ErrCodeValidation, "дедлайн должен быть в будущем")
	}
	if !s.Price.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
	}
	return nil
}

func (s ScopeBox) clone() ScopeBox {
	out := s
	out.Deliverables = append([]string(nil), s.Deliverables...)
	if s.Extra != nil {
		out.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ScopeRevision содержит правку описания работы покупателем. Nil-поля не меняются.
type ScopeRevision struct {
	Title        *string
	Description  *string
	Deliverables []string
	Deadline     *time.Time
	Extra        map[string]string
}

func (r ScopeRevision) applyTo(s ScopeBox) ScopeBox {
	out := s.clone()
	if r.Title != nil {
		out.Title = *r.Title
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Deliverables != nil {
		out.Deliverables = append([]string(nil), r.Deliverables...)
	}
	if r.Deadline != nil {
		out.Deadline = *r.Deadline
	}
	if r.Extra != nil {
		out.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// UpdateScope заменяет описание работы. Допустимо только до внесения средств.
func (o *Order) UpdateScope(actor Actor, scope ScopeBox, now time.Time) error {
	if actor.Role != valueobject.RoleBuyer || actor.ID != o.BuyerID {
		return apperror.ErrActorNotAuthorized
	}
	if o.Status != valueobject.OrderStatusPlaced {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "описание работы нельзя менять в статусе %s", o.Status)
	}
	if err := scope.Validate(now); err != nil {
		return err
	}
	o.Scope = scope.clone()
	o.UpdatedAt = now
	return nil
}

func (o *Order) IsParticipant(actorID uuid.UUID) bool {
	return o.BuyerID == actorID || o.SellerID == actorID
}

// CanBeViewedBy разрешает просмотр только сторонам заказа и администраторам.
func (o *Order) CanBeViewedBy(actor Actor) bool {
	return actor.IsAdmin() || o.IsParticipant(actor.ID)
}

// WasFunded сообщает, что покупатель хоть раз внёс деньги в escrow.
func (o *Order) WasFunded() bool {
	for _, l := range o.Logs {
		if l.ToStatus == valueobject.OrderStatusEscrowFunded {
			return true
		}
	}
	return false
}

// LastLog возвращает последнюю запись журнала.
func (o *Order) LastLog() (OrderLog, bool) {
	if len(o.Logs) == 0 {
		return OrderLog{}, false
	}
	return o.Logs[len(o.Logs)-1], true
}

// Clone возвращает глубокую копию заказа.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Scope = o.Scope.clone()
	out.DeliveryFiles = append([]string(nil), o.DeliveryFiles...)
	if o.DisputeID != nil {
		id := *o.DisputeID
		out.DisputeID = &id
	}
	out.Logs = make([]OrderLog, len(o.Logs))
	for i, l := range o.Logs {
		if l.ActorID != nil {
			id := *l.ActorID
			l.ActorID = &id
		}
		out.Logs[i] = l
	}
	return &out
}
