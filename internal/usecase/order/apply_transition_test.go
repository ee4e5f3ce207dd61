package order_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/notify"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/pkg/keylock"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
)

func TestApplyTransition_HappyPath(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)

	f.do(t, o.ID, f.buyer, valueobject.ActionFundEscrow)
	f.do(t, o.ID, f.seller, valueobject.ActionAccept)
	f.do(t, o.ID, f.seller, valueobject.ActionSubmit, withFiles("a.png"))
	result := f.do(t, o.ID, f.buyer, valueobject.ActionApprove)

	assert.Equal(t, valueobject.OrderStatusReleased, result.Status)
	require.Len(t, result.Logs, 5)

	want := []struct {
		from, to valueobject.OrderStatus
	}{
		{valueobject.OrderStatusPlaced, valueobject.OrderStatusEscrowFunded},
		{valueobject.OrderStatusEscrowFunded, valueobject.OrderStatusInProgress},
		{valueobject.OrderStatusInProgress, valueobject.OrderStatusSubmitted},
		{valueobject.OrderStatusSubmitted, valueobject.OrderStatusApproved},
		{valueobject.OrderStatusApproved, valueobject.OrderStatusReleased},
	}
	for i, w := range want {
		assert.Equal(t, w.from, result.Logs[i].FromStatus, "log %d", i)
		assert.Equal(t, w.to, result.Logs[i].ToStatus, "log %d", i)
	}

	stored := f.stored(t, o.ID)
	assert.Equal(t, valueobject.OrderStatusReleased, stored.Status)
	assert.Equal(t, []string{"a.png"}, stored.DeliveryFiles)
	assert.Equal(t, int64(5), stored.Version)

	events := f.notifier.recorded()
	require.Len(t, events, 5)
	assert.Equal(t, valueobject.OrderStatusReleased, events[4].To)
	assert.Equal(t, valueobject.RoleSystem, events[4].ActorRole)
}

func TestApplyTransition_WrongSellerCannotAccept(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)
	f.do(t, o.ID, f.buyer, valueobject.ActionFundEscrow)

	impostor := entity.Actor{ID: uuid.New(), Role: valueobject.RoleSeller}
	_, err := f.try(o.ID, impostor, valueobject.ActionAccept)
	assert.True(t, apperror.IsActorNotAuthorized(err))

	stored := f.stored(t, o.ID)
	assert.Equal(t, valueobject.OrderStatusEscrowFunded, stored.Status)
	assert.Len(t, stored.Logs, 1)
}

func TestApplyTransition_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.try(uuid.New(), f.buyer, valueobject.ActionFundEscrow)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.try(uuid.New(), f.buyer, "teleport")
	assert.True(t, apperror.IsValidation(err))
}

func TestApplyTransition_TerminalStatusIsFinal(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)
	f.do(t, o.ID, f.admin, valueobject.ActionCancel)
	before := f.stored(t, o.ID)

	attempts := []struct {
		actor  entity.Actor
		action valueobject.OrderAction
	}{
		{f.buyer, valueobject.ActionFundEscrow},
		{f.admin, valueobject.ActionCancel},
		{f.buyer, valueobject.ActionRaiseDispute},
		{f.seller, valueobject.ActionAccept},
	}
	for _, a := range attempts {
		for i := 0; i < 2; i++ {
			_, err := f.try(o.ID, a.actor, a.action, withDispute(valueobject.ReasonOther, "x"))
			assert.True(t, apperror.IsInvalidTransition(err), "%s: %v", a.action, err)
		}
	}

	after := f.stored(t, o.ID)
	assert.Equal(t, before, after)
}

func TestApplyTransition_AuthorizationBeforeValidation(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)

	_, err := f.try(o.ID, f.buyer, valueobject.ActionSubmit)
	assert.True(t, apperror.IsActorNotAuthorized(err))

	_, err = f.try(o.ID, f.seller, valueobject.ActionSubmit)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.try(o.ID, f.seller, valueobject.ActionSubmit, withFiles("ok.png", ""))
	assert.True(t, apperror.IsValidation(err))

	assert.Equal(t, valueobject.OrderStatusInProgress, f.stored(t, o.ID).Status)
}

func TestApplyTransition_BuyerRevises(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)
	f.do(t, o.ID, f.buyer, valueobject.ActionFundEscrow)
	f.do(t, o.ID, f.seller, valueobject.ActionRequestChanges)

	title := "Иллюстрации и обложка"
	result := f.do(t, o.ID, f.buyer, valueobject.ActionBuyerRevises, func(in *order.ApplyTransitionInput) {
		in.Revision = &entity.ScopeRevision{Title: &title}
	})

	assert.Equal(t, valueobject.OrderStatusEscrowFunded, result.Status)
	assert.Equal(t, title, result.Scope.Title)
	assert.Equal(t, o.Scope.Price, result.Scope.Price)
}

func TestApplyTransition_RaiseDispute(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)

	result := f.do(t, o.ID, f.buyer, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonNotDelivered, "Нет ни одного файла"))

	assert.Equal(t, valueobject.OrderStatusDisputed, result.Status)
	require.NotNil(t, result.DisputeID)

	d, err := f.store.Disputes().FindByID(context.Background(), *result.DisputeID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, d.Status)
	assert.Equal(t, o.BuyerID, d.BuyerID)
	assert.Equal(t, o.SellerID, d.SellerID)
	assert.Equal(t, valueobject.RoleBuyer, d.RaisedBy)
}

func TestApplyTransition_DuplicateDispute(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)
	first := f.do(t, o.ID, f.buyer, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonQualityIssue, "Качество не соответствует"))

	_, err := f.try(o.ID, f.seller, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonPaymentIssue, "Встречная претензия"))
	assert.True(t, apperror.IsDuplicateDispute(err))

	stored := f.stored(t, o.ID)
	assert.Equal(t, *first.DisputeID, *stored.DisputeID)
	disputes, err := f.store.Disputes().ListByOrderID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, disputes, 1)
}

func TestApplyTransition_DisputeValidation(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)

	_, err := f.try(o.ID, f.buyer, valueobject.ActionRaiseDispute)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.try(o.ID, f.buyer, valueobject.ActionRaiseDispute, withDispute("", "описание"))
	assert.True(t, apperror.IsValidation(err))

	_, err = f.try(o.ID, f.buyer, valueobject.ActionRaiseDispute, func(in *order.ApplyTransitionInput) {
		in.Dispute = &order.DisputePayload{
			Reason:       valueobject.ReasonFraud,
			Description:  "Подделка",
			EvidenceURLs: []string{"not a url"},
		}
	})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, valueobject.OrderStatusInProgress, f.stored(t, o.ID).Status)
}

func TestApplyTransition_ResolveDisputePartialRefund(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)
	disputed := f.do(t, o.ID, f.buyer, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonIncompleteWork, "Сделана половина"))

	half, err := valueobject.ParseMoney("200", "USD")
	require.NoError(t, err)

	_, err = f.try(o.ID, f.seller, valueobject.ActionResolveDispute, withResolution(valueobject.ResolutionReleaseToSeller, nil))
	assert.True(t, apperror.IsActorNotAuthorized(err))

	result := f.do(t, o.ID, f.admin, valueobject.ActionResolveDispute, withResolution(valueobject.ResolutionPartialRefund, &half))
	assert.Equal(t, valueobject.OrderStatusRefunded, result.Status)
	assert.Equal(t, *disputed.DisputeID, *result.DisputeID)

	d, err := f.store.Disputes().FindByID(context.Background(), *result.DisputeID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)
	assert.Equal(t, valueobject.ResolutionPartialRefund, *d.Resolution)

	events := f.notifier.recorded()
	last := events[len(events)-1]
	assert.Equal(t, valueobject.OrderStatusRefunded, last.To)
	require.NotNil(t, last.RefundAmount)
	assert.Equal(t, half, *last.RefundAmount)
}

func TestApplyTransition_CancelDisputedResolvesDispute(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)
	f.do(t, o.ID, f.seller, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonCommunicationIssue, "Покупатель пропал"))

	result := f.do(t, o.ID, f.admin, valueobject.ActionCancel)
	assert.Equal(t, valueobject.OrderStatusCancelled, result.Status)

	d, err := f.store.Disputes().FindByID(context.Background(), *result.DisputeID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)
	assert.Equal(t, valueobject.ResolutionCancelOrder, *d.Resolution)

	active, err := f.store.Disputes().FindActiveByOrderID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestApplyTransition_ConcurrentCallsOneWins(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)

	paused := newPausingUoW(f.store)
	slow := order.NewApplyTransitionUseCase(paused, f.locks, f.notifier, f.log)

	done := make(chan error, 1)
	go func() {
		_, err := slow.Execute(context.Background(), order.ApplyTransitionInput{
			OrderID: o.ID, Actor: f.seller, Action: valueobject.ActionSubmit, DeliveryFiles: []string{"v1.zip"},
		})
		done <- err
	}()
	<-paused.entered

	_, err := f.try(o.ID, f.seller, valueobject.ActionSubmit, withFiles("v2.zip"))
	assert.True(t, apperror.IsConcurrentModification(err))
	_, err = f.try(o.ID, f.buyer, valueobject.ActionRequestChanges)
	assert.True(t, apperror.IsConcurrentModification(err))

	close(paused.release)
	require.NoError(t, <-done)

	stored := f.stored(t, o.ID)
	assert.Equal(t, valueobject.OrderStatusSubmitted, stored.Status)
	assert.Equal(t, []string{"v1.zip"}, stored.DeliveryFiles)
	assert.Len(t, stored.Logs, 3)
}

func TestApplyTransition_StaleWriteLosesWithoutSharedLock(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)

	// Отдельный экземпляр процесса: свои блокировки, общее хранилище.
	paused := newPausingUoW(f.store)
	other := order.NewApplyTransitionUseCase(paused, keylock.New(), f.notifier, f.log)

	done := make(chan error, 1)
	go func() {
		_, err := other.Execute(context.Background(), order.ApplyTransitionInput{
			OrderID: o.ID, Actor: f.admin, Action: valueobject.ActionCancel,
		})
		done <- err
	}()
	<-paused.entered

	f.do(t, o.ID, f.seller, valueobject.ActionSubmit, withFiles("final.zip"))

	close(paused.release)
	assert.True(t, apperror.IsConcurrentModification(<-done))

	stored := f.stored(t, o.ID)
	assert.Equal(t, valueobject.OrderStatusSubmitted, stored.Status)
	assert.Len(t, stored.Logs, 3)
}

func TestApplyTransition_LogInvariantAcrossCalls(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)

	steps := []struct {
		actor  entity.Actor
		action valueobject.OrderAction
		mods   []func(*order.ApplyTransitionInput)
	}{
		{f.seller, valueobject.ActionAccept, nil},
		{f.buyer, valueobject.ActionFundEscrow, nil},
		{f.seller, valueobject.ActionRequestChanges, nil},
		{f.buyer, valueobject.ActionBuyerRevises, nil},
		{f.seller, valueobject.ActionAccept, nil},
		{f.buyer, valueobject.ActionApprove, nil},
		{f.seller, valueobject.ActionSubmit, []func(*order.ApplyTransitionInput){withFiles("x.pdf")}},
		{f.buyer, valueobject.ActionRequestChanges, nil},
		{f.seller, valueobject.ActionSubmit, []func(*order.ApplyTransitionInput){withFiles("y.pdf")}},
	}

	prev := 0
	for _, s := range steps {
		_, _ = f.try(o.ID, s.actor, s.action, s.mods...)
		stored := f.stored(t, o.ID)
		assert.GreaterOrEqual(t, len(stored.Logs), prev)
		prev = len(stored.Logs)
		if last, ok := stored.LastLog(); ok {
			assert.Equal(t, stored.Status, last.ToStatus)
		}
	}
	assert.Equal(t, valueobject.OrderStatusSubmitted, f.stored(t, o.ID).Status)
}

func settlementKinds(t *testing.T, changes []notify.OrderStatusChange) []entity.SettlementKind {
	t.Helper()
	var kinds []entity.SettlementKind
	for _, c := range changes {
		got, err := notify.Instructions(c)
		require.NoError(t, err)
		for _, in := range got {
			kinds = append(kinds, in.Kind)
		}
	}
	return kinds
}

func TestApplyTransition_UnfundedDisputeMovesNoMoney(t *testing.T) {
	for _, r := range []valueobject.DisputeResolution{
		valueobject.ResolutionReleaseToSeller,
		valueobject.ResolutionRefundBuyer,
		valueobject.ResolutionCancelOrder,
	} {
		t.Run(string(r), func(t *testing.T) {
			f := newFixture(t)
			o := f.placeOrder(t)
			f.do(t, o.ID, f.buyer, valueobject.ActionRaiseDispute,
				withDispute(valueobject.ReasonPaymentIssue, "Продавец просит оплату вне площадки"))
			f.do(t, o.ID, f.admin, valueobject.ActionResolveDispute, withResolution(r, nil))

			events := f.notifier.recorded()
			require.Len(t, events, 2)
			for _, e := range events {
				assert.False(t, e.Funded)
			}
			assert.Empty(t, settlementKinds(t, events))
		})
	}
}

func TestApplyTransition_UnfundedDisputedCancelMovesNoMoney(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)
	f.do(t, o.ID, f.seller, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonOther, "Покупатель пропал"))
	result := f.do(t, o.ID, f.admin, valueobject.ActionCancel)

	assert.Equal(t, valueobject.OrderStatusCancelled, result.Status)
	assert.Empty(t, settlementKinds(t, f.notifier.recorded()))
}

func TestApplyTransition_FundedDisputeRefunds(t *testing.T) {
	f := newFixture(t)
	o := f.inProgress(t)
	f.do(t, o.ID, f.buyer, valueobject.ActionRaiseDispute,
		withDispute(valueobject.ReasonNotDelivered, "Работа не начата"))
	f.do(t, o.ID, f.admin, valueobject.ActionResolveDispute, withResolution(valueobject.ResolutionRefundBuyer, nil))

	assert.Equal(t, []entity.SettlementKind{entity.SettlementHold, entity.SettlementRefund},
		settlementKinds(t, f.notifier.recorded()))
}
