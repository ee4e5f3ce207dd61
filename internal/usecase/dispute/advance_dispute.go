package dispute

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
	actorpkg "github.com/ignatzorin/escrow-backend/internal/usecase/actor"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

type AdvanceDisputeInput struct {
	DisputeID  uuid.UUID                     `json:"-"`
	ActorID    uuid.UUID                     `json:"-"`
	Action     valueobject.DisputeAction     `json:"action"`
	Note       string                        `json:"note" validate:"max=2000"`
	AssignTo   *uuid.UUID                    `json:"assign_to"`
	Resolution valueobject.DisputeResolution `json:"resolution"`
	Amount     *valueobject.Money            `json:"amount"`
}

type AdvanceDisputeUseCase struct {
	uow       repository.UnitOfWork
	locks     *keylock.Locker
	directory repository.ActorDirectory
	notifier  notify.Notifier
	log       logrus.FieldLogger
}

func NewAdvanceDisputeUseCase(uow repository.UnitOfWork, locks *keylock.Locker, directory repository.ActorDirectory, notifier notify.Notifier, log logrus.FieldLogger) *AdvanceDisputeUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AdvanceDisputeUseCase{uow: uow, locks: locks, directory: directory, notifier: notifier, log: log}
}

func (uc *AdvanceDisputeUseCase) Execute(ctx context.Context, input AdvanceDisputeInput) (*entity.Dispute, error) {
	target, ok := input.Action.Target()
	if !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие над спором: %q", input.Action)
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorpkg.Resolve(ctx, uc.directory, input.ActorID)
	if err != nil {
		return nil, err
	}

	unlock, ok := uc.locks.TryLock(keylock.DisputeKey(input.DisputeID))
	if !ok {
		return nil, apperror.ErrConcurrentModification
	}
	defer unlock()

	var (
		result *entity.Dispute
		events []notify.OrderStatusChange
	)
	err = uc.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		d, err := repos.Disputes.FindByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		expected := d.Version
		now := time.Now().UTC()

		if target != valueobject.DisputeStatusResolved {
			if err := d.Progress(actor, input.Action, entity.ProgressInput{Note: input.Note, AssignTo: input.AssignTo}, now); err != nil {
				return err
			}
			if err := repos.Disputes.Save(ctx, d, expected); err != nil {
				return err
			}
			result = d
			return nil
		}

		// Решение спора меняет и заказ, поэтому занимаем и его ключ.
		unlockOrder, ok := uc.locks.TryLock(keylock.OrderKey(d.OrderID))
		if !ok {
			return apperror.ErrConcurrentModification
		}
		defer unlockOrder()

		order, err := repos.Orders.FindByID(ctx, d.OrderID)
		if err != nil {
			return err
		}
		orderVersion := order.Version
		change, err := entity.ResolveDispute(order, d, actor, entity.ResolutionInput{
			Resolution: input.Resolution,
			Amount:     input.Amount,
			Notes:      input.Note,
		}, now)
		if err != nil {
			return err
		}
		if err := repos.Disputes.Save(ctx, d, expected); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order, orderVersion); err != nil {
			return err
		}
		result = d
		events = notify.Changes(order, []entity.StatusChange{change}, d.ResolutionAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"dispute_id": result.ID,
		"order_id":   result.OrderID,
		"action":     input.Action,
		"to":         result.Status,
	}).Info("dispute advanced")
	uc.notifier.Notify(ctx, events...)
	return result, nil
}
