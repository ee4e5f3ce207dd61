package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/storage"
)

type ScopeResponse struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Deliverables []string          `json:"deliverables"`
	Deadline     time.Time         `json:"deadline"`
	Price        valueobject.Money `json:"price"`
	Extra        map[string]string `json:"extra,omitempty"`
}

type ContactResponse struct {
	BuyerName         string `json:"buyer_name,omitempty"`
	BuyerEmail        string `json:"buyer_email,omitempty"`
	Platform          string `json:"platform,omitempty"`
	ProductLink       string `json:"product_link,omitempty"`
	Country           string `json:"country,omitempty"`
	Currency          string `json:"currency,omitempty"`
	SellerContact     string `json:"seller_contact,omitempty"`
	EscrowLink        string `json:"escrow_link,omitempty"`
	OrderTrackingLink string `json:"order_tracking_link,omitempty"`
}

type OrderLogResponse struct {
	At         time.Time  `json:"at"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	ActorRole  string     `json:"actor_role"`
	Action     string     `json:"action"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Note       string     `json:"note,omitempty"`
}

type OrderResponse struct {
	ID            uuid.UUID          `json:"id"`
	BuyerID       uuid.UUID          `json:"buyer_id"`
	SellerID      uuid.UUID          `json:"seller_id"`
	Status        string             `json:"status"`
	Scope         ScopeResponse      `json:"scope"`
	Contact       ContactResponse    `json:"contact"`
	DeliveryFiles []string           `json:"delivery_files"`
	DisputeID     *uuid.UUID         `json:"dispute_id,omitempty"`
	Logs          []OrderLogResponse `json:"logs"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:       o.ID,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		Status:   string(o.Status),
		Scope: ScopeResponse{
			Title:        o.Scope.Title,
			Description:  o.Scope.Description,
			Deliverables: nonNil(o.Scope.Deliverables),
			Deadline:     o.Scope.Deadline,
			Price:        o.Scope.Price,
			Extra:        o.Scope.Extra,
		},
		Contact:       ContactResponse(o.Contact),
		DeliveryFiles: nonNil(o.DeliveryFiles),
		DisputeID:     o.DisputeID,
		Logs:          make([]OrderLogResponse, 0, len(o.Logs)),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, l := range o.Logs {
		resp.Logs = append(resp.Logs, OrderLogResponse{
			At:         l.At,
			ActorID:    l.ActorID,
			ActorRole:  string(l.ActorRole),
			Action:     string(l.Action),
			FromStatus: string(l.FromStatus),
			ToStatus:   string(l.ToStatus),
			Note:       l.Note,
		})
	}
	return resp
}

func NewOrderListResponse(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

type TimelineEntryResponse struct {
	At         time.Time  `json:"at"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action"`
	FromStatus string     `json:"from_status,omitempty"`
	ToStatus   string     `json:"to_status"`
	Note       string     `json:"note,omitempty"`
}

type DisputeResponse struct {
	ID               uuid.UUID               `json:"id"`
	OrderID          uuid.UUID               `json:"order_id"`
	BuyerID          uuid.UUID               `json:"buyer_id"`
	SellerID         uuid.UUID               `json:"seller_id"`
	RaisedBy         string                  `json:"raised_by"`
	RaisedByID       uuid.UUID               `json:"raised_by_id"`
	Reason           string                  `json:"reason"`
	Description      string                  `json:"description"`
	EvidenceURLs     []string                `json:"evidence_urls"`
	Status           string                  `json:"status"`
	Priority         string                  `json:"priority"`
	Resolution       *string                 `json:"resolution,omitempty"`
	ResolutionAmount *valueobject.Money      `json:"resolution_amount,omitempty"`
	ResolutionNotes  string                  `json:"resolution_notes,omitempty"`
	ResolvedBy       *uuid.UUID              `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time              `json:"resolved_at,omitempty"`
	AssignedTo       *uuid.UUID              `json:"assigned_to,omitempty"`
	Timeline         []TimelineEntryResponse `json:"timeline"`
	LastActivity     time.Time               `json:"last_activity"`
	Version          int64                   `json:"version"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func NewDisputeResponse(d *entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:               d.ID,
		OrderID:          d.OrderID,
		BuyerID:          d.BuyerID,
		SellerID:         d.SellerID,
		RaisedBy:         string(d.RaisedBy),
		RaisedByID:       d.RaisedByID,
		Reason:           string(d.Reason),
		Description:      d.Description,
		EvidenceURLs:     nonNil(d.EvidenceURLs),
		Status:           string(d.Status),
		Priority:         string(d.Priority),
		ResolutionAmount: d.ResolutionAmount,
		ResolutionNotes:  d.ResolutionNotes,
		ResolvedBy:       d.ResolvedBy,
		ResolvedAt:       d.ResolvedAt,
		AssignedTo:       d.AssignedTo,
		Timeline:         make([]TimelineEntryResponse, 0, len(d.Timeline)),
		LastActivity:     d.LastActivity,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Resolution != nil {
		r := string(*d.Resolution)
		resp.Resolution = &r
	}
	for _, e := range d.Timeline {
		resp.Timeline = append(resp.Timeline, TimelineEntryResponse{
			At:         e.At,
			ActorID:    e.ActorID,
			Action:     e.Action,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Note:       e.Note,
		})
	}
	return resp
}

func NewDisputeListResponse(disputes []*entity.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, NewDisputeResponse(d))
	}
	return out
}

// DeliveryResponse описывает загруженный файл. Ref передаётся в delivery_files при submit.
type DeliveryResponse struct {
	Ref      string `json:"ref"`
	Name     string `json:"name"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

func NewDeliveryResponse(d storage.Delivery) DeliveryResponse {
	return DeliveryResponse(d)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
