package entity

import (
	"strings"
	"time"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const maxDeliveryFiles = 50

type edgeKey struct {
	from   valueobject.OrderStatus
	action valueobject.OrderAction
}

type edge struct {
	to    valueobject.OrderStatus
	roles []valueobject.Role
}

var (
	buyerOnly  = []valueobject.Role{valueobject.RoleBuyer}
	sellerOnly = []valueobject.Role{valueobject.RoleSeller}
	adminOnly  = []valueobject.Role{valueobject.RoleAdmin}
	systemOnly = []valueobject.Role{valueobject.RoleSystem}
	parties    = []valueobject.Role{valueobject.RoleBuyer, valueobject.RoleSeller}
)

// orderEdges задаёт таблицу переходов заказа.
var orderEdges = map[edgeKey]edge{
	{valueobject.OrderStatusPlaced, valueobject.ActionFundEscrow}:               {valueobject.OrderStatusEscrowFunded, buyerOnly},
	{valueobject.OrderStatusEscrowFunded, valueobject.ActionAccept}:             {valueobject.OrderStatusInProgress, sellerOnly},
	{valueobject.OrderStatusEscrowFunded, valueobject.ActionReject}:             {valueobject.OrderStatusRejected, sellerOnly},
	{valueobject.OrderStatusEscrowFunded, valueobject.ActionRequestChanges}:     {valueobject.OrderStatusChangesRequested, sellerOnly},
	{valueobject.OrderStatusChangesRequested, valueobject.ActionBuyerRevises}:   {valueobject.OrderStatusEscrowFunded, buyerOnly},
	{valueobject.OrderStatusInProgress, valueobject.ActionSubmit}:               {valueobject.OrderStatusSubmitted, sellerOnly},
	{valueobject.OrderStatusSubmitted, valueobject.ActionApprove}:               {valueobject.OrderStatusApproved, buyerOnly},
	{valueobject.OrderStatusSubmitted, valueobject.ActionRequestChanges}:        {valueobject.OrderStatusInProgress, buyerOnly},
	{valueobject.OrderStatusApproved, valueobject.ActionRelease}:                {valueobject.OrderStatusReleased, systemOnly},
	{valueobject.OrderStatusDisputed, valueobject.ActionResolveDispute}:         {"", adminOnly},
}

// Переходы, доступные из любого нетерминального статуса.
var anyNonTerminalEdges = map[valueobject.OrderAction]edge{
	valueobject.ActionRaiseDispute: {valueobject.OrderStatusDisputed, parties},
	valueobject.ActionCancel:       {valueobject.OrderStatusCancelled, adminOnly},
}

var defaultNotes = map[valueobject.OrderAction]string{
	valueobject.ActionFundEscrow:     "Покупатель внёс средства в escrow",
	valueobject.ActionAccept:         "Продавец принял заказ в работу",
	valueobject.ActionReject:         "Продавец отклонил заказ, средства возвращаются покупателю",
	valueobject.ActionRequestChanges: "Запрошены изменения",
	valueobject.ActionBuyerRevises:   "Покупатель уточнил описание работы",
	valueobject.ActionSubmit:         "Продавец сдал работу",
	valueobject.ActionApprove:        "Покупатель принял работу",
	valueobject.ActionRelease:        "Средства переведены продавцу",
	valueobject.ActionRaiseDispute:   "Открыт спор",
	valueobject.ActionResolveDispute: "Спор разрешён",
	valueobject.ActionCancel:         "Заказ отменён администратором",
}

func lookupEdge(from valueobject.OrderStatus, action valueobject.OrderAction) (edge, bool) {
	if e, ok := orderEdges[edgeKey{from, action}]; ok {
		return e, true
	}
	if from.IsTerminal() {
		return edge{}, false
	}
	e, ok := anyNonTerminalEdges[action]
	return e, ok
}

// CanApply сообщает, существует ли ребро для действия из текущего статуса.
func (o *Order) CanApply(action valueobject.OrderAction) bool {
	if o.Status.IsTerminal() {
		return false
	}
	_, ok := lookupEdge(o.Status, action)
	return ok
}

// StatusChange описывает фактический переход, о котором уведомляются подписчики.
type StatusChange struct {
	Action    valueobject.OrderAction
	From      valueobject.OrderStatus
	To        valueobject.OrderStatus
	ActorRole valueobject.Role
	Note      string
	At        time.Time
}

// TransitionPayload содержит данные, сопровождающие обычные переходы.
type TransitionPayload struct {
	Note          string
	DeliveryFiles []string
	Revision      *ScopeRevision
}

func (o *Order) checkEdge(actor Actor, action valueobject.OrderAction) (edge, error) {
	if o.Status.IsTerminal() {
		return edge{}, apperror.Newf(apperror.ErrCodeInvalidTransition,
			"заказ в терминальном статусе %s, действие %s невозможно", o.Status, action)
	}
	e, ok := lookupEdge(o.Status, action)
	if !ok {
		return edge{}, apperror.Newf(apperror.ErrCodeInvalidTransition,
			"действие %s недоступно в статусе %s", action, o.Status)
	}
	if !o.authorized(actor, e.roles) {
		return edge{}, apperror.ErrActorNotAuthorized
	}
	return e, nil
}

// Authorize проверяет, что действие возможно из текущего статуса и разрешено актору.
func (o *Order) Authorize(actor Actor, action valueobject.OrderAction) error {
	_, err := o.checkEdge(actor, action)
	return err
}

func (o *Order) authorized(actor Actor, roles []valueobject.Role) bool {
	for _, role := range roles {
		if actor.Role != role {
			continue
		}
		switch role {
		case valueobject.RoleBuyer:
			if actor.ID == o.BuyerID {
				return true
			}
		case valueobject.RoleSeller:
			if actor.ID == o.SellerID {
				return true
			}
		case valueobject.RoleAdmin:
			if actor.IsAdmin() {
				return true
			}
		case valueobject.RoleSystem:
			return true
		}
	}
	return false
}

// move меняет статус и дописывает журнал. Проверки выполняются вызывающим.
func (o *Order) move(actor Actor, action valueobject.OrderAction, to valueobject.OrderStatus, note string, now time.Time) StatusChange {
	note = strings.TrimSpace(note)
	if note == "" {
		note = defaultNotes[action]
	}
	from := o.Status
	o.Logs = append(o.Logs, OrderLog{
		At:         now,
		ActorID:    actor.logID(),
		ActorRole:  actor.Role,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
	o.Status = to
	o.UpdatedAt = now
	return StatusChange{Action: action, From: from, To: to, ActorRole: actor.Role, Note: note, At: now}
}

// Apply выполняет обычный переход. Споры открываются и разрешаются через RaiseDispute,
// ResolveDispute и CancelDisputed, так как затрагивают две сущности.
func (o *Order) Apply(actor Actor, action valueobject.OrderAction, payload TransitionPayload, now time.Time) ([]StatusChange, error) {
	e, err := o.checkEdge(actor, action)
	if err != nil {
		return nil, err
	}

	switch action {
	case valueobject.ActionRaiseDispute, valueobject.ActionResolveDispute:
		return nil, apperror.Newf(apperror.ErrCodeInternal, "действие %s требует данных спора", action)
	case valueobject.ActionCancel:
		if o.Status == valueobject.OrderStatusDisputed {
			return nil, apperror.New(apperror.ErrCodeInternal, "отмена спорного заказа требует данных спора")
		}
	case valueobject.ActionSubmit:
		files, err := normalizeDeliveryFiles(payload.DeliveryFiles)
		if err != nil {
			return nil, err
		}
		o.DeliveryFiles = files
	case valueobject.ActionBuyerRevises:
		if payload.Revision != nil {
			revised := payload.Revision.applyTo(o.Scope)
			if err := revised.Validate(now); err != nil {
				return nil, err
			}
			o.Scope = revised
		}
	}

	changes := []StatusChange{o.move(actor, action, e.to, payload.Note, now)}

	// После приёмки работы средства уходят продавцу автоматически.
	if o.Status == valueobject.OrderStatusApproved {
		system := SystemActor()
		release, err := o.checkEdge(system, valueobject.ActionRelease)
		if err != nil {
			return nil, err
		}
		changes = append(changes, o.move(system, valueobject.ActionRelease, release.to, "", now))
	}

	return changes, nil
}

func normalizeDeliveryFiles(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "для сдачи работы нужен хотя бы один файл")
	}
	if len(files) > maxDeliveryFiles {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "нельзя сдать более %d файлов", maxDeliveryFiles)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, apperror.New(apperror.ErrCodeValidation, "ссылка на файл не может быть пустой")
		}
		out = append(out, f)
	}
	return out, nil
}
