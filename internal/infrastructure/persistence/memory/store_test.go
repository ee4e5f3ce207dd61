package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

func newOrder(t *testing.T, buyer, seller uuid.UUID) *entity.Order {
	t.Helper()
	price, err := valueobject.NewPrice("99.50", "EUR")
	require.NoError(t, err)
	o, err := entity.NewOrder(buyer, seller, entity.ScopeBox{
		Title:        "Перевод сайта",
		Description:  "Перевести лендинг на английский",
		Deliverables: []string{"en.json"},
		Deadline:     time.Now().Add(72 * time.Hour),
		Price:        price,
	}, entity.ContactInfo{}, time.Now())
	require.NoError(t, err)
	return o
}

func buyerOf(o *entity.Order) entity.Actor {
	return entity.Actor{ID: o.BuyerID, Role: valueobject.RoleBuyer}
}

func TestStore_CreateAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, uuid.New(), uuid.New())

	require.NoError(t, s.Orders().Create(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	got, err := s.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Scope.Title, got.Scope.Title)

	got.Scope.Title = "изменено"
	again, err := s.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Перевод сайта", again.Scope.Title)

	_, err = s.Orders().FindByID(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestStore_SaveChecksVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, uuid.New(), uuid.New())
	require.NoError(t, s.Orders().Create(ctx, o))

	first, _ := s.Orders().FindByID(ctx, o.ID)
	second, _ := s.Orders().FindByID(ctx, o.ID)

	_, err := first.Apply(buyerOf(first), valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Orders().Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	_, err = second.Apply(buyerOf(second), valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now())
	require.NoError(t, err)
	err = s.Orders().Save(ctx, second, 1)
	assert.True(t, apperror.IsConcurrentModification(err))

	stored, _ := s.Orders().FindByID(ctx, o.ID)
	assert.Len(t, stored.Logs, 1)
}

func TestStore_DoRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, uuid.New(), uuid.New())
	require.NoError(t, s.Orders().Create(ctx, o))

	boom := errors.New("boom")
	err := s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loaded, err := repos.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		_, err = loaded.Apply(buyerOf(loaded), valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now())
		require.NoError(t, err)
		require.NoError(t, repos.Orders.Save(ctx, loaded, loaded.Version))

		inside, err := repos.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.OrderStatusEscrowFunded, inside.Status)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, _ := s.Orders().FindByID(ctx, o.ID)
	assert.Equal(t, valueobject.OrderStatusPlaced, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestStore_CommitDetectsConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, uuid.New(), uuid.New())
	require.NoError(t, s.Orders().Create(ctx, o))

	err := s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loaded, _ := repos.Orders.FindByID(ctx, o.ID)
		_, err := loaded.Apply(buyerOf(loaded), valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now())
		require.NoError(t, err)
		require.NoError(t, repos.Orders.Save(ctx, loaded, loaded.Version))

		// Параллельная запись успевает раньше фиксации.
		other, _ := s.Orders().FindByID(ctx, o.ID)
		require.NoError(t, s.Orders().UpdateScope(ctx, other, other.Version))
		return nil
	})
	assert.True(t, apperror.IsConcurrentModification(err))

	stored, _ := s.Orders().FindByID(ctx, o.ID)
	assert.Equal(t, valueobject.OrderStatusPlaced, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestStore_SingleActiveDispute(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, uuid.New(), uuid.New())
	require.NoError(t, s.Orders().Create(ctx, o))

	raise := func() error {
		d := &entity.Dispute{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Status:    valueobject.DisputeStatusOpen,
			CreatedAt: time.Now(),
		}
		return s.Disputes().Create(ctx, d)
	}
	require.NoError(t, raise())
	assert.True(t, apperror.IsDuplicateDispute(raise()))

	active, err := s.Disputes().FindActiveByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, active)

	none, err := s.Disputes().FindActiveByOrderID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_ListByParticipant(t *testing.T) {
	s := New()
	ctx := context.Background()
	buyer := uuid.New()

	for i := 0; i < 3; i++ {
		o := newOrder(t, buyer, uuid.New())
		o.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Orders().Create(ctx, o))
	}
	require.NoError(t, s.Orders().Create(ctx, newOrder(t, uuid.New(), uuid.New())))

	page, total, err := s.Orders().ListByParticipant(ctx, repository.OrderFilter{ParticipantID: buyer, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	all, total, err := s.Orders().ListByParticipant(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	admin := uuid.New()
	d.Put(admin, valueobject.RoleAdmin, valueobject.CapabilityAdminister)

	role, err := d.ResolveRole(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RoleAdmin, role)

	ok, err := d.HasCapability(ctx, admin, valueobject.CapabilityAdminister)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.ResolveRole(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
