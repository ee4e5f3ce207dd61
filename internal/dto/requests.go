package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/usecase/dispute"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
)

// CreateOrderRequest представляет тело POST /orders.
type CreateOrderRequest struct {
	SellerID uuid.UUID          `json:"seller_id" binding:"required"`
	Scope    order.ScopeInput   `json:"scope" binding:"required"`
	Contact  order.ContactInput `json:"contact"`
}

func (r CreateOrderRequest) ToInput(actor entity.Actor) order.CreateOrderInput {
	return order.CreateOrderInput{Actor: actor, SellerID: r.SellerID, Scope: r.Scope, Contact: r.Contact}
}

// UpdateScopeRequest представляет тело PATCH /orders/:id/scope.
type UpdateScopeRequest struct {
	Scope order.ScopeInput `json:"scope" binding:"required"`
}

// RevisionRequest содержит правку описания работы при request_changes.
type RevisionRequest struct {
	Title        *string           `json:"title"`
	Description  *string           `json:"description"`
	Deliverables []string          `json:"deliverables"`
	Deadline     *time.Time        `json:"deadline"`
	Extra        map[string]string `json:"extra"`
}

// TransitionRequest представляет тело POST /orders/:id/transitions.
type TransitionRequest struct {
	Action        valueobject.OrderAction  `json:"action" binding:"required"`
	Note          string                   `json:"note"`
	DeliveryFiles []string                 `json:"delivery_files"`
	Dispute       *order.DisputePayload    `json:"dispute"`
	Resolution    *order.ResolutionPayload `json:"resolution"`
	Revision      *RevisionRequest         `json:"revision"`
}

func (r TransitionRequest) ToInput(orderID uuid.UUID, actor entity.Actor) order.ApplyTransitionInput {
	in := order.ApplyTransitionInput{
		OrderID:       orderID,
		Actor:         actor,
		Action:        r.Action,
		Note:          r.Note,
		DeliveryFiles: r.DeliveryFiles,
		Dispute:       r.Dispute,
		Resolution:    r.Resolution,
	}
	if r.Revision != nil {
		in.Revision = &entity.ScopeRevision{
			Title:        r.Revision.Title,
			Description:  r.Revision.Description,
			Deliverables: r.Revision.Deliverables,
			Deadline:     r.Revision.Deadline,
			Extra:        r.Revision.Extra,
		}
	}
	return in
}

// AdvanceDisputeRequest представляет тело POST /disputes/:id/advance.
type AdvanceDisputeRequest struct {
	Action     valueobject.DisputeAction     `json:"action" binding:"required"`
	Note       string                        `json:"note"`
	AssignTo   *uuid.UUID                    `json:"assign_to"`
	Resolution valueobject.DisputeResolution `json:"resolution"`
	Amount     *valueobject.Money            `json:"amount"`
}

func (r AdvanceDisputeRequest) ToInput(disputeID, actorID uuid.UUID) dispute.AdvanceDisputeInput {
	return dispute.AdvanceDisputeInput{
		DisputeID:  disputeID,
		ActorID:    actorID,
		Action:     r.Action,
		Note:       r.Note,
		AssignTo:   r.AssignTo,
		Resolution: r.Resolution,
		Amount:     r.Amount,
	}
}
