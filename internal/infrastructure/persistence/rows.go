package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

const orderColumns = `id, buyer_id, seller_id, title, description, deliverables, deadline, price, currency,
	extra, status, delivery_files, dispute_id, contact, version, created_at, updated_at`

type orderRow struct {
	ID            uuid.UUID      `db:"id"`
	BuyerID       uuid.UUID      `db:"buyer_id"`
	SellerID      uuid.UUID      `db:"seller_id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Deliverables  pq.StringArray `db:"deliverables"`
	Deadline      time.Time      `db:"deadline"`
	Price         string         `db:"price"`
	Currency      string         `db:"currency"`
	Extra         []byte         `db:"extra"`
	Status        string         `db:"status"`
	DeliveryFiles pq.StringArray `db:"delivery_files"`
	DisputeID     uuid.NullUUID  `db:"dispute_id"`
	Contact       []byte         `db:"contact"`
	Version       int64          `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type orderPageRow struct {
	orderRow
	Total int `db:"total"`
}

type orderLogRow struct {
	OrderID    uuid.UUID     `db:"order_id"`
	Seq        int           `db:"seq"`
	At         time.Time     `db:"at"`
	ActorID    uuid.NullUUID `db:"actor_id"`
	ActorRole  string        `db:"actor_role"`
	Action     string        `db:"action"`
	FromStatus string        `db:"from_status"`
	ToStatus   string        `db:"to_status"`
	Note       string        `db:"note"`
}

// contactDoc хранит ContactInfo в колонке JSONB.
type contactDoc struct {
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

func encodeOrder(o *entity.Order) (extra, contact []byte, err error) {
	fields := o.Scope.Extra
	if fields == nil {
		fields = map[string]string{}
	}
	if extra, err = json.Marshal(fields); err != nil {
		return nil, nil, fmt.Errorf("encode extra: %w", err)
	}
	c := o.Contact
	contact, err = json.Marshal(contactDoc(c))
	if err != nil {
		return nil, nil, fmt.Errorf("encode contact: %w", err)
	}
	return extra, contact, nil
}

func (r orderRow) toEntity(logs []orderLogRow) (*entity.Order, error) {
	price, err := parseMoney(r.Price, r.Currency)
	if err != nil {
		return nil, err
	}
	var extra map[string]string
	if len(r.Extra) > 0 {
		if err := json.Unmarshal(r.Extra, &extra); err != nil {
			return nil, fmt.Errorf("decode extra: %w", err)
		}
		if len(extra) == 0 {
			extra = nil
		}
	}
	var contact contactDoc
	if len(r.Contact) > 0 {
		if err := json.Unmarshal(r.Contact, &contact); err != nil {
			return nil, fmt.Errorf("decode contact: %w", err)
		}
	}

	o := &entity.Order{
		ID:       r.ID,
		BuyerID:  r.BuyerID,
		SellerID: r.SellerID,
		Scope: entity.ScopeBox{
			Title:        r.Title,
			Description:  r.Description,
			Deliverables: []string(r.Deliverables),
			Deadline:     r.Deadline.UTC(),
			Price:        price,
			Extra:        extra,
		},
		Status:    valueobject.OrderStatus(r.Status),
		DisputeID: nullID(r.DisputeID),
		Contact:   entity.ContactInfo(contact),
		Version:   r.Version,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if len(r.DeliveryFiles) > 0 {
		o.DeliveryFiles = []string(r.DeliveryFiles)
	}
	o.Logs = make([]entity.OrderLog, 0, len(logs))
	for _, l := range logs {
		o.Logs = append(o.Logs, entity.OrderLog{
			At:         l.At.UTC(),
			ActorID:    nullID(l.ActorID),
			ActorRole:  valueobject.Role(l.ActorRole),
			Action:     valueobject.OrderAction(l.Action),
			FromStatus: valueobject.OrderStatus(l.FromStatus),
			ToStatus:   valueobject.OrderStatus(l.ToStatus),
			Note:       l.Note,
		})
	}
	return o, nil
}

const disputeColumns = `id, order_id, buyer_id, seller_id, raised_by, raised_by_id, reason, description,
	evidence_urls, status, resolution, resolution_amount, resolution_currency, resolution_notes,
	resolved_by, resolved_at, priority, assigned_to, last_activity, version, created_at, updated_at`

type disputeRow struct {
	ID                 uuid.UUID      `db:"id"`
	OrderID            uuid.UUID      `db:"order_id"`
	BuyerID            uuid.UUID      `db:"buyer_id"`
	SellerID           uuid.UUID      `db:"seller_id"`
	RaisedBy           string         `db:"raised_by"`
	RaisedByID         uuid.UUID      `db:"raised_by_id"`
	Reason             string         `db:"reason"`
	Description        string         `db:"description"`
	EvidenceURLs       pq.StringArray `db:"evidence_urls"`
	Status             string         `db:"status"`
	Resolution         sql.NullString `db:"resolution"`
	ResolutionAmount   sql.NullString `db:"resolution_amount"`
	ResolutionCurrency sql.NullString `db:"resolution_currency"`
	ResolutionNotes    string         `db:"resolution_notes"`
	ResolvedBy         uuid.NullUUID  `db:"resolved_by"`
	ResolvedAt         sql.NullTime   `db:"resolved_at"`
	Priority           string         `db:"priority"`
	AssignedTo         uuid.NullUUID  `db:"assigned_to"`
	LastActivity       time.Time      `db:"last_activity"`
	Version            int64          `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

type timelineRow struct {
	DisputeID  uuid.UUID     `db:"dispute_id"`
	Seq        int           `db:"seq"`
	At         time.Time     `db:"at"`
	ActorID    uuid.NullUUID `db:"actor_id"`
	Action     string        `db:"action"`
	FromStatus string        `db:"from_status"`
	ToStatus   string        `db:"to_status"`
	Note       string        `db:"note"`
}

func (r disputeRow) toEntity(timeline []timelineRow) (*entity.Dispute, error) {
	d := &entity.Dispute{
		ID:              r.ID,
		OrderID:         r.OrderID,
		BuyerID:         r.BuyerID,
		SellerID:        r.SellerID,
		RaisedBy:        valueobject.Role(r.RaisedBy),
		RaisedByID:      r.RaisedByID,
		Reason:          valueobject.DisputeReason(r.Reason),
		Description:     r.Description,
		EvidenceURLs:    []string(r.EvidenceURLs),
		Status:          valueobject.DisputeStatus(r.Status),
		ResolutionNotes: r.ResolutionNotes,
		ResolvedBy:      nullID(r.ResolvedBy),
		Priority:        valueobject.DisputePriority(r.Priority),
		AssignedTo:      nullID(r.AssignedTo),
		LastActivity:    r.LastActivity.UTC(),
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.Resolution.Valid {
		res := valueobject.DisputeResolution(r.Resolution.String)
		d.Resolution = &res
	}
	if r.ResolutionAmount.Valid {
		amount, err := parseMoney(r.ResolutionAmount.String, r.ResolutionCurrency.String)
		if err != nil {
			return nil, err
		}
		d.ResolutionAmount = &amount
	}
	if r.ResolvedAt.Valid {
		at := r.ResolvedAt.Time.UTC()
		d.ResolvedAt = &at
	}
	d.Timeline = make([]entity.TimelineEntry, 0, len(timeline))
	for _, e := range timeline {
		d.Timeline = append(d.Timeline, entity.TimelineEntry{
			At:         e.At.UTC(),
			ActorID:    nullID(e.ActorID),
			Action:     e.Action,
			FromStatus: valueobject.DisputeStatus(e.FromStatus),
			ToStatus:   valueobject.DisputeStatus(e.ToStatus),
			Note:       e.Note,
		})
	}
	return d, nil
}

// disputeArgs возвращает значения изменяемых колонок спора в порядке UPDATE-запроса.
func disputeArgs(d *entity.Dispute) []any {
	var resolution, amount, currency sql.NullString
	if d.Resolution != nil {
		resolution = sql.NullString{String: string(*d.Resolution), Valid: true}
	}
	if d.ResolutionAmount != nil {
		amount = sql.NullString{String: d.ResolutionAmount.Amount.String(), Valid: true}
		currency = sql.NullString{String: d.ResolutionAmount.Currency, Valid: true}
	}
	var resolvedAt sql.NullTime
	if d.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *d.ResolvedAt, Valid: true}
	}
	return []any{
		string(d.Status), resolution, amount, currency, d.ResolutionNotes,
		toNullID(d.ResolvedBy), resolvedAt, toNullID(d.AssignedTo), d.LastActivity, d.UpdatedAt,
	}
}

type settlementRow struct {
	ID            uuid.UUID `db:"id"`
	OrderID       uuid.UUID `db:"order_id"`
	Kind          string    `db:"kind"`
	BeneficiaryID uuid.UUID `db:"beneficiary_id"`
	Amount        string    `db:"amount"`
	Currency      string    `db:"currency"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
}

func parseMoney(amount, currency string) (valueobject.Money, error) {
	d, err := decimal.Parse(amount)
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return valueobject.NewMoney(d.Trim(0), currency)
}

func nullID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}

func toNullID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func idArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
