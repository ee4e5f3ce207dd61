package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// TimelineEntry описывает запись хронологии спора. Записи только дописываются.
type TimelineEntry struct {
	At         time.Time
	ActorID    *uuid.UUID
	Action     string
	FromStatus valueobject.DisputeStatus
	ToStatus   valueobject.DisputeStatus
	Note       string
}

type Dispute struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	BuyerID          uuid.UUID
	SellerID         uuid.UUID
	RaisedBy         valueobject.Role
	RaisedByID       uuid.UUID
	Reason           valueobject.DisputeReason
	Description      string
	EvidenceURLs     []string
	Status           valueobject.DisputeStatus
	Resolution       *valueobject.DisputeResolution
	ResolutionAmount *valueobject.Money
	ResolutionNotes  string
	ResolvedBy       *uuid.UUID
	ResolvedAt       *time.Time
	Priority         valueobject.DisputePriority
	AssignedTo       *uuid.UUID
	Timeline         []TimelineEntry
	LastActivity     time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RaiseDisputeInput содержит данные для открытия спора.
type RaiseDisputeInput struct {
	Reason       valueobject.DisputeReason
	Description  string
	EvidenceURLs []string
	Note         string
}

// ResolutionInput содержит решение администратора по спору.
type ResolutionInput struct {
	Resolution valueobject.DisputeResolution
	Amount     *valueobject.Money
	Notes      string
}

// ProgressInput содержит данные для промежуточных шагов спора.
type ProgressInput struct {
	Note     string
	AssignTo *uuid.UUID
}

const openingAction = "open"

// IsActive сообщает, что спор не разрешён и не закрыт.
func (d *Dispute) IsActive() bool {
	return d.Status.IsActive()
}

func (d *Dispute) IsParticipant(actorID uuid.UUID) bool {
	return d.BuyerID == actorID || d.SellerID == actorID
}

func (d *Dispute) CanBeViewedBy(actor Actor) bool {
	return actor.IsAdmin() || d.IsParticipant(actor.ID)
}

// RaiseDispute переводит заказ в DISPUTED и создаёт спор. active содержит текущий спор заказа или nil.
func RaiseDispute(order *Order, active *Dispute, actor Actor, in RaiseDisputeInput, now time.Time) (*Dispute, StatusChange, error) {
	e, err := order.checkEdge(actor, valueobject.ActionRaiseDispute)
	if err != nil {
		return nil, StatusChange{}, err
	}
	if order.Status == valueobject.OrderStatusDisputed || (active != nil && active.IsActive()) {
		return nil, StatusChange{}, apperror.ErrDuplicateDispute
	}
	if !in.Reason.IsValid() {
		return nil, StatusChange{}, apperror.Newf(apperror.ErrCodeValidation, "неизвестная причина спора: %q", in.Reason)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, StatusChange{}, apperror.New(apperror.ErrCodeValidation, "описание спора обязательно")
	}

	d := &Dispute{
		ID:           uuid.New(),
		OrderID:      order.ID,
		BuyerID:      order.BuyerID,
		SellerID:     order.SellerID,
		RaisedBy:     actor.Role,
		RaisedByID:   actor.ID,
		Reason:       in.Reason,
		Description:  description,
		EvidenceURLs: append([]string(nil), in.EvidenceURLs...),
		Status:       valueobject.DisputeStatusOpen,
		Priority:     in.Reason.Priority(),
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.Timeline = append(d.Timeline, TimelineEntry{
		At:       now,
		ActorID:  actor.logID(),
		Action:   openingAction,
		ToStatus: valueobject.DisputeStatusOpen,
		Note:     description,
	})

	id := d.ID
	order.DisputeID = &id
	change := order.move(actor, valueobject.ActionRaiseDispute, e.to, in.Note, now)
	return d, change, nil
}

// Progress выполняет промежуточный шаг спора: рассмотрение, ответ, медиацию или закрытие.
func (d *Dispute) Progress(actor Actor, action valueobject.DisputeAction, in ProgressInput, now time.Time) error {
	target, ok := action.Target()
	if !ok {
		return apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие над спором: %q", action)
	}
	if target == valueobject.DisputeStatusResolved {
		return apperror.New(apperror.ErrCodeInternal, "решение спора требует заказа")
	}
	if err := d.checkForward(target); err != nil {
		return err
	}
	if !d.authorized(actor, action) {
		return apperror.ErrActorNotAuthorized
	}

	if action == valueobject.DisputeActionStartReview {
		assignee := actor.ID
		if in.AssignTo != nil {
			assignee = *in.AssignTo
		}
		d.AssignedTo = &assignee
	}
	d.advance(actor, action, target, in.Note, now)
	return nil
}

func (d *Dispute) checkForward(target valueobject.DisputeStatus) error {
	if d.Status == valueobject.DisputeStatusClosed {
		return apperror.New(apperror.ErrCodeInvalidTransition, "спор закрыт")
	}
	if !d.Status.Precedes(target) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition,
			"спор нельзя перевести из %s в %s", d.Status, target)
	}
	if target == valueobject.DisputeStatusClosed && d.Status != valueobject.DisputeStatusResolved {
		return apperror.New(apperror.ErrCodeInvalidTransition, "закрыть можно только разрешённый спор")
	}
	return nil
}

func (d *Dispute) authorized(actor Actor, action valueobject.DisputeAction) bool {
	if actor.IsAdmin() {
		return true
	}
	if action != valueobject.DisputeActionRespond {
		return false
	}
	// Отвечает сторона, против которой открыт спор.
	switch d.RaisedBy {
	case valueobject.RoleBuyer:
		return actor.Role == valueobject.RoleSeller && actor.ID == d.SellerID
	case valueobject.RoleSeller:
		return actor.Role == valueobject.RoleBuyer && actor.ID == d.BuyerID
	}
	return false
}

func (d *Dispute) advance(actor Actor, action valueobject.DisputeAction, to valueobject.DisputeStatus, note string, now time.Time) {
	d.Timeline = append(d.Timeline, TimelineEntry{
		At:         now,
		ActorID:    actor.logID(),
		Action:     string(action),
		FromStatus: d.Status,
		ToStatus:   to,
		Note:       strings.TrimSpace(note),
	})
	d.Status = to
	d.LastActivity = now
	d.UpdatedAt = now
}

// ResolveDispute разрешает спор и переводит заказ из DISPUTED согласно решению.
// Обе сущности меняются только если все проверки прошли.
func ResolveDispute(order *Order, d *Dispute, actor Actor, in ResolutionInput, now time.Time) (StatusChange, error) {
	if d.OrderID != order.ID {
		return StatusChange{}, apperror.New(apperror.ErrCodeInternal, "спор относится к другому заказу")
	}
	if !d.IsActive() {
		return StatusChange{}, apperror.Newf(apperror.ErrCodeInvalidTransition, "спор уже в статусе %s", d.Status)
	}
	if _, err := order.checkEdge(actor, valueobject.ActionResolveDispute); err != nil {
		return StatusChange{}, err
	}
	to, ok := in.Resolution.OrderStatus()
	if !ok {
		return StatusChange{}, apperror.Newf(apperror.ErrCodeValidation, "неизвестное решение по спору: %q", in.Resolution)
	}
	amount, err := resolutionAmount(order, in)
	if err != nil {
		return StatusChange{}, err
	}

	d.applyResolution(actor, in.Resolution, amount, in.Notes, now)
	return order.move(actor, valueobject.ActionResolveDispute, to, resolutionNote(in), now), nil
}

// CancelDisputed отменяет спорный заказ, закрывая активный спор решением CANCEL_ORDER.
func CancelDisputed(order *Order, d *Dispute, actor Actor, note string, now time.Time) (StatusChange, error) {
	e, err := order.checkEdge(actor, valueobject.ActionCancel)
	if err != nil {
		return StatusChange{}, err
	}
	if d != nil && d.IsActive() {
		if d.OrderID != order.ID {
			return StatusChange{}, apperror.New(apperror.ErrCodeInternal, "спор относится к другому заказу")
		}
		price := order.Scope.Price
		d.applyResolution(actor, valueobject.ResolutionCancelOrder, &price, note, now)
	}
	return order.move(actor, valueobject.ActionCancel, e.to, note, now), nil
}

func (d *Dispute) applyResolution(actor Actor, resolution valueobject.DisputeResolution, amount *valueobject.Money, notes string, now time.Time) {
	r := resolution
	d.Resolution = &r
	d.ResolutionAmount = amount
	d.ResolutionNotes = strings.TrimSpace(notes)
	d.ResolvedBy = actor.logID()
	resolvedAt := now
	d.ResolvedAt = &resolvedAt
	note := d.ResolutionNotes
	if note == "" {
		note = string(resolution)
	}
	d.advance(actor, valueobject.DisputeActionResolve, valueobject.DisputeStatusResolved, note, now)
}

func resolutionAmount(order *Order, in ResolutionInput) (*valueobject.Money, error) {
	price := order.Scope.Price
	switch in.Resolution {
	case valueobject.ResolutionPartialRefund:
		if in.Amount == nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "для частичного возврата нужна сумма")
		}
		if !in.Amount.SameCurrency(price) {
			return nil, apperror.New(apperror.ErrCodeValidation, "валюта возврата должна совпадать с валютой заказа")
		}
		if !in.Amount.IsPositive() || !in.Amount.Less(price) {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма частичного возврата должна быть больше нуля и меньше цены заказа")
		}
		amount := *in.Amount
		return &amount, nil
	case valueobject.ResolutionRefundBuyer, valueobject.ResolutionCancelOrder:
		if in.Amount != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма указывается только для частичного возврата")
		}
		return &price, nil
	default:
		if in.Amount != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма указывается только для частичного возврата")
		}
		return nil, nil
	}
}

func resolutionNote(in ResolutionInput) string {
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		return "Спор разрешён (" + string(in.Resolution) + "): " + notes
	}
	return "Спор разрешён (" + string(in.Resolution) + ")"
}

// Clone возвращает глубокую копию спора.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	out := *d
	out.EvidenceURLs = append([]string(nil), d.EvidenceURLs...)
	if d.Resolution != nil {
		r := *d.Resolution
		out.Resolution = &r
	}
	if d.ResolutionAmount != nil {
		m := *d.ResolutionAmount
		out.ResolutionAmount = &m
	}
	out.ResolvedBy = cloneID(d.ResolvedBy)
	out.AssignedTo = cloneID(d.AssignedTo)
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		out.ResolvedAt = &t
	}
	out.Timeline = make([]TimelineEntry, len(d.Timeline))
	for i, e := range d.Timeline {
		e.ActorID = cloneID(e.ActorID)
		out.Timeline[i] = e
	}
	return &out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
