package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

func money(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.ParseMoney(amount, "USD")
	require.NoError(t, err)
	return m
}

func change(t *testing.T, from, to valueobject.OrderStatus) OrderStatusChange {
	return OrderStatusChange{
		OrderID:  uuid.New(),
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Action:   valueobject.ActionFundEscrow,
		From:     from,
		To:       to,
		Price:    money(t, "200"),
		Funded:   true,
		At:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

type collectingHook struct {
	mu   sync.Mutex
	got  []OrderStatusChange
	done chan struct{}
	want int
}

func (h *collectingHook) OnOrderStatusChanged(_ context.Context, c OrderStatusChange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, c)
	if len(h.got) == h.want {
		close(h.done)
	}
	return nil
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hook")
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	hook := &collectingHook{done: make(chan struct{}), want: 2}
	d := NewDispatcher(nil, time.Second, hook)

	first := change(t, valueobject.OrderStatusSubmitted, valueobject.OrderStatusApproved)
	second := change(t, valueobject.OrderStatusApproved, valueobject.OrderStatusReleased)
	d.Notify(context.Background(), first, second)

	waitFor(t, hook.done)
	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Equal(t, valueobject.OrderStatusApproved, hook.got[0].To)
	assert.Equal(t, valueobject.OrderStatusReleased, hook.got[1].To)
}

func TestDispatcher_HookErrorIsLogged(t *testing.T) {
	logger, logs := logtest.NewNullLogger()
	done := make(chan struct{})
	failing := HookFunc(func(context.Context, OrderStatusChange) error { return errors.New("broker down") })
	signal := HookFunc(func(context.Context, OrderStatusChange) error { close(done); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(logger, time.Second, failing)
	d.Add(signal)
	d.Notify(ctx, change(t, valueobject.OrderStatusPlaced, valueobject.OrderStatusEscrowFunded))
	cancel()

	waitFor(t, done)
	require.Eventually(t, func() bool { return len(logs.AllEntries()) == 1 }, 2*time.Second, 10*time.Millisecond)
	entry := logs.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, valueobject.OrderStatusEscrowFunded, entry.Data["to"])
}

type fakeChannel struct {
	declared  string
	published []amqp.Publishing
	keys      []string
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.declared = name + "/" + kind
	if !durable {
		return errors.New("must be durable")
	}
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultExchange+"/topic", ch.declared)

	c := change(t, valueobject.OrderStatusChangesRequested, valueobject.OrderStatusEscrowFunded)
	require.NoError(t, p.OnOrderStatusChanged(context.Background(), c))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "order.status.escrow_funded", ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &body))
	assert.Equal(t, "ESCROW_FUNDED", body["to_status"])
	assert.Equal(t, map[string]any{"amount": "200", "currency": "USD"}, body["price"])
	require.NoError(t, p.Close())
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Record(ctx context.Context, in *entity.SettlementInstruction) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *mockJournal) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.SettlementInstruction, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]*entity.SettlementInstruction), args.Error(1)
}

func TestInstructions(t *testing.T) {
	partial := money(t, "50")

	tests := []struct {
		name   string
		from   valueobject.OrderStatus
		to     valueobject.OrderStatus
		funded bool
		refund *valueobject.Money
		kinds  []entity.SettlementKind
	}{
		{"first funding", valueobject.OrderStatusPlaced, valueobject.OrderStatusEscrowFunded, true, nil, []entity.SettlementKind{entity.SettlementHold}},
		{"revised scope", valueobject.OrderStatusChangesRequested, valueobject.OrderStatusEscrowFunded, true, nil, nil},
		{"release", valueobject.OrderStatusApproved, valueobject.OrderStatusReleased, true, nil, []entity.SettlementKind{entity.SettlementRelease}},
		{"full refund", valueobject.OrderStatusDisputed, valueobject.OrderStatusRefunded, true, nil, []entity.SettlementKind{entity.SettlementRefund}},
		{"partial refund", valueobject.OrderStatusDisputed, valueobject.OrderStatusRefunded, true, &partial, []entity.SettlementKind{entity.SettlementRefund, entity.SettlementRelease}},
		{"rejected", valueobject.OrderStatusEscrowFunded, valueobject.OrderStatusRejected, true, nil, []entity.SettlementKind{entity.SettlementRefund}},
		{"cancelled while disputed", valueobject.OrderStatusDisputed, valueobject.OrderStatusCancelled, true, nil, []entity.SettlementKind{entity.SettlementRefund}},
		{"cancelled before funding", valueobject.OrderStatusPlaced, valueobject.OrderStatusCancelled, false, nil, nil},
		{"accepted", valueobject.OrderStatusEscrowFunded, valueobject.OrderStatusInProgress, true, nil, nil},
		{"unfunded dispute released", valueobject.OrderStatusDisputed, valueobject.OrderStatusReleased, false, nil, nil},
		{"unfunded dispute refunded", valueobject.OrderStatusDisputed, valueobject.OrderStatusRefunded, false, &partial, nil},
		{"unfunded dispute cancelled", valueobject.OrderStatusDisputed, valueobject.OrderStatusCancelled, false, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := change(t, tt.from, tt.to)
			c.Funded = tt.funded
			c.RefundAmount = tt.refund
			got, err := Instructions(c)
			require.NoError(t, err)

			var kinds []entity.SettlementKind
			for _, in := range got {
				kinds = append(kinds, in.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestInstructions_PartialRefundSplitsPrice(t *testing.T) {
	c := change(t, valueobject.OrderStatusDisputed, valueobject.OrderStatusRefunded)
	partial := money(t, "50")
	c.RefundAmount = &partial

	got, err := Instructions(c)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c.BuyerID, got[0].BeneficiaryID)
	assert.Equal(t, "50", got[0].Amount.Amount.String())
	assert.Equal(t, c.SellerID, got[1].BeneficiaryID)
	assert.Equal(t, "150", got[1].Amount.Amount.String())
}

func TestSettlementHook(t *testing.T) {
	journal := new(mockJournal)
	hook := NewSettlementHook(journal)
	c := change(t, valueobject.OrderStatusApproved, valueobject.OrderStatusReleased)

	journal.On("Record", mock.Anything, mock.MatchedBy(func(in *entity.SettlementInstruction) bool {
		return in.Kind == entity.SettlementRelease && in.BeneficiaryID == c.SellerID
	})).Return(nil).Once()

	require.NoError(t, hook.OnOrderStatusChanged(context.Background(), c))
	journal.AssertExpectations(t)

	failing := new(mockJournal)
	failing.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))
	assert.Error(t, NewSettlementHook(failing).OnOrderStatusChanged(context.Background(), c))
}
