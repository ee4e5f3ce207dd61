package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/notify"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/pkg/keylock"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

type DisputePayload struct {
	Reason       valueobject.DisputeReason `json:"reason" validate:"required"`
	Description  string                    `json:"description" validate:"required,max=5000"`
	EvidenceURLs []string                  `json:"evidence_urls" validate:"max=20,dive,url"`
}

type ResolutionPayload struct {
	Resolution valueobject.DisputeResolution `json:"resolution" validate:"required"`
	Amount     *valueobject.Money            `json:"amount"`
	Notes      string                        `json:"notes" validate:"max=2000"`
}

type ApplyTransitionInput struct {
	OrderID       uuid.UUID               `json:"-"`
	Actor         entity.Actor            `json:"-"`
	Action        valueobject.OrderAction `json:"action"`
	Note          string                  `json:"note" validate:"max=2000"`
	DeliveryFiles []string                `json:"delivery_files" validate:"omitempty,max=50,dive,required,max=500"`
	Dispute       *DisputePayload         `json:"dispute"`
	Resolution    *ResolutionPayload      `json:"resolution"`
	Revision      *entity.ScopeRevision   `json:"-"`
}

func (in ApplyTransitionInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	switch in.Action {
	case valueobject.ActionRaiseDispute:
		if in.Dispute == nil {
			return apperror.New(apperror.ErrCodeValidation, "для открытия спора нужны причина и описание")
		}
	case valueobject.ActionResolveDispute:
		if in.Resolution == nil {
			return apperror.New(apperror.ErrCodeValidation, "для решения спора нужно указать решение")
		}
	case valueobject.ActionSubmit:
		if len(in.DeliveryFiles) == 0 {
			return apperror.New(apperror.ErrCodeValidation, "для сдачи работы нужен хотя бы один файл")
		}
	}
	return nil
}

// ApplyTransitionUseCase меняет статус заказа. Других путей изменения статуса нет.
type ApplyTransitionUseCase struct {
	uow      repository.UnitOfWork
	locks    *keylock.Locker
	notifier notify.Notifier
	log      logrus.FieldLogger
}

func NewApplyTransitionUseCase(uow repository.UnitOfWork, locks *keylock.Locker, notifier notify.Notifier, log logrus.FieldLogger) *ApplyTransitionUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ApplyTransitionUseCase{uow: uow, locks: locks, notifier: notifier, log: log}
}

func (uc *ApplyTransitionUseCase) Execute(ctx context.Context, input ApplyTransitionInput) (*entity.Order, error) {
	if !input.Action.IsValid() {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие над заказом: %q", input.Action)
	}

	unlock, ok := uc.locks.TryLock(keylock.OrderKey(input.OrderID))
	if !ok {
		return nil, apperror.ErrConcurrentModification
	}
	defer unlock()

	var (
		result *entity.Order
		events []notify.OrderStatusChange
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if err := order.Authorize(input.Actor, input.Action); err != nil {
			return err
		}
		if err := input.validate(); err != nil {
			return err
		}

		expected := order.Version
		now := time.Now().UTC()
		var (
			changes []entity.StatusChange
			refund  *valueobject.Money
		)

		switch {
		case input.Action == valueobject.ActionRaiseDispute:
			changes, err = uc.raiseDispute(ctx, repos, order, input, now)
		case input.Action == valueobject.ActionResolveDispute:
			changes, refund, err = uc.resolveDispute(ctx, repos, order, input, now)
		case input.Action == valueobject.ActionCancel && order.Status == valueobject.OrderStatusDisputed:
			changes, refund, err = uc.cancelDisputed(ctx, repos, order, input, now)
		default:
			changes, err = order.Apply(input.Actor, input.Action, entity.TransitionPayload{
				Note:          input.Note,
				DeliveryFiles: input.DeliveryFiles,
				Revision:      input.Revision,
			}, now)
		}
		if err != nil {
			return err
		}

		if err := repos.Orders.Save(ctx, order, expected); err != nil {
			return err
		}
		result = order
		events = notify.Changes(order, changes, refund)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		uc.log.WithFields(logrus.Fields{
			"order_id": ev.OrderID,
			"action":   ev.Action,
			"from":     ev.From,
			"to":       ev.To,
		}).Info("order status changed")
	}
	uc.notifier.Notify(ctx, events...)
	return result, nil
}

func (uc *ApplyTransitionUseCase) raiseDispute(ctx context.Context, repos repository.Repositories, order *entity.Order, input ApplyTransitionInput, now time.Time) ([]entity.StatusChange, error) {
	active, err := repos.Disputes.FindActiveByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	d, change, err := entity.RaiseDispute(order, active, input.Actor, entity.RaiseDisputeInput{
		Reason:       input.Dispute.Reason,
		Description:  input.Dispute.Description,
		EvidenceURLs: input.Dispute.EvidenceURLs,
		Note:         input.Note,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := repos.Disputes.Create(ctx, d); err != nil {
		return nil, err
	}
	return []entity.StatusChange{change}, nil
}

// activeDispute загружает активный спор заказа и занимает его ключ,
// чтобы параллельный AdvanceDispute получил ConcurrentModification.
func (uc *ApplyTransitionUseCase) activeDispute(ctx context.Context, repos repository.Repositories, order *entity.Order) (*entity.Dispute, func(), error) {
	d, err := repos.Disputes.FindActiveByOrderID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, func() {}, nil
	}
	unlock, ok := uc.locks.TryLock(keylock.DisputeKey(d.ID))
	if !ok {
		return nil, nil, apperror.ErrConcurrentModification
	}
	return d, unlock, nil
}

func (uc *ApplyTransitionUseCase) resolveDispute(ctx context.Context, repos repository.Repositories, order *entity.Order, input ApplyTransitionInput, now time.Time) ([]entity.StatusChange, *valueobject.Money, error) {
	d, unlock, err := uc.activeDispute(ctx, repos, order)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()
	if d == nil {
		return nil, nil, apperror.New(apperror.ErrCodeInvalidTransition, "у заказа нет активного спора")
	}

	expected := d.Version
	change, err := entity.ResolveDispute(order, d, input.Actor, entity.ResolutionInput{
		Resolution: input.Resolution.Resolution,
		Amount:     input.Resolution.Amount,
		Notes:      input.Resolution.Notes,
	}, now)
	if err != nil {
		return nil, nil, err
	}
	if err := repos.Disputes.Save(ctx, d, expected); err != nil {
		return nil, nil, err
	}
	return []entity.StatusChange{change}, d.ResolutionAmount, nil
}

func (uc *ApplyTransitionUseCase) cancelDisputed(ctx context.Context, repos repository.Repositories, order *entity.Order, input ApplyTransitionInput, now time.Time) ([]entity.StatusChange, *valueobject.Money, error) {
	d, unlock, err := uc.activeDispute(ctx, repos, order)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var expected int64
	if d != nil {
		expected = d.Version
	}
	change, err := entity.CancelDisputed(order, d, input.Actor, input.Note, now)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return []entity.StatusChange{change}, nil, nil
	}
	if err := repos.Disputes.Save(ctx, d, expected); err != nil {
		return nil, nil, err
	}
	return []entity.StatusChange{change}, d.ResolutionAmount, nil
}
