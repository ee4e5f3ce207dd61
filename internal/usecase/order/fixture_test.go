package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/persistence/memory"
	"github.com/ignatzorin/escrow-backend/internal/notify"
	"github.com/ignatzorin/escrow-backend/internal/pkg/keylock"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []notify.OrderStatusChange
}

func (n *recordingNotifier) Notify(_ context.Context, changes ...notify.OrderStatusChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, changes...)
}

func (n *recordingNotifier) recorded() []notify.OrderStatusChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.OrderStatusChange(nil), n.changes...)
}

// pausingUoW выполняет fn, затем ждёт сигнала перед фиксацией.
type pausingUoW struct {
	inner   repository.UnitOfWork
	entered chan struct{}
	release chan struct{}
}

func newPausingUoW(inner repository.UnitOfWork) *pausingUoW {
	return &pausingUoW{inner: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (u *pausingUoW) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return u.inner.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := fn(ctx, repos); err != nil {
			return err
		}
		close(u.entered)
		<-u.release
		return nil
	})
}

type fixture struct {
	store    *memory.Store
	dir      *memory.Directory
	locks    *keylock.Locker
	notifier *recordingNotifier
	log      *logrus.Logger

	create *order.CreateOrderUseCase
	apply  *order.ApplyTransitionUseCase

	buyer  entity.Actor
	seller entity.Actor
	admin  entity.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	f := &fixture{
		store:    memory.New(),
		dir:      memory.NewDirectory(),
		locks:    keylock.New(),
		notifier: &recordingNotifier{},
		log:      log,
		buyer:    entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer},
		seller:   entity.Actor{ID: uuid.New(), Role: valueobject.RoleSeller},
		admin:    entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin, Admin: true},
	}
	f.dir.Put(f.buyer.ID, valueobject.RoleBuyer)
	f.dir.Put(f.seller.ID, valueobject.RoleSeller)
	f.dir.Put(f.admin.ID, valueobject.RoleAdmin, valueobject.CapabilityAdminister)

	f.create = order.NewCreateOrderUseCase(f.store.Orders(), f.dir)
	f.apply = order.NewApplyTransitionUseCase(f.store, f.locks, f.notifier, log)
	return f
}

func validCreateInput(buyer entity.Actor, seller uuid.UUID) order.CreateOrderInput {
	return order.CreateOrderInput{
		Actor:    buyer,
		SellerID: seller,
		Scope: order.ScopeInput{
			Title:        "Иллюстрации для книги",
			Description:  "Десять иллюстраций для детской книги в едином стиле",
			Deliverables: []string{"cover.png", "pages.zip"},
			Deadline:     time.Now().Add(30 * 24 * time.Hour),
			Price:        "400.00",
			Currency:     "USD",
		},
		Contact: order.ContactInput{
			BuyerName:   "Мария",
			BuyerEmail:  "Maria@Example.com",
			ProductLink: "https://shop.example.com/book",
			Country:     "RU",
		},
	}
}

func (f *fixture) placeOrder(t *testing.T) *entity.Order {
	t.Helper()
	o, err := f.create.Execute(context.Background(), validCreateInput(f.buyer, f.seller.ID))
	require.NoError(t, err)
	return o
}

func (f *fixture) do(t *testing.T, id uuid.UUID, actor entity.Actor, action valueobject.OrderAction, mods ...func(*order.ApplyTransitionInput)) *entity.Order {
	t.Helper()
	o, err := f.try(id, actor, action, mods...)
	require.NoError(t, err)
	return o
}

func (f *fixture) try(id uuid.UUID, actor entity.Actor, action valueobject.OrderAction, mods ...func(*order.ApplyTransitionInput)) (*entity.Order, error) {
	in := order.ApplyTransitionInput{OrderID: id, Actor: actor, Action: action}
	for _, m := range mods {
		m(&in)
	}
	return f.apply.Execute(context.Background(), in)
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *entity.Order {
	t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func withFiles(files ...string) func(*order.ApplyTransitionInput) {
	return func(in *order.ApplyTransitionInput) { in.DeliveryFiles = files }
}

func withDispute(reason valueobject.DisputeReason, description string) func(*order.ApplyTransitionInput) {
	return func(in *order.ApplyTransitionInput) {
		in.Dispute = &order.DisputePayload{Reason: reason, Description: description}
	}
}

func withResolution(r valueobject.DisputeResolution, amount *valueobject.Money) func(*order.ApplyTransitionInput) {
	return func(in *order.ApplyTransitionInput) {
		in.Resolution = &order.ResolutionPayload{Resolution: r, Amount: amount}
	}
}

// inProgress доводит новый заказ до IN_PROGRESS.
func (f *fixture) inProgress(t *testing.T) *entity.Order {
	t.Helper()
	o := f.placeOrder(t)
	f.do(t, o.ID, f.buyer, valueobject.ActionFundEscrow)
	return f.do(t, o.ID, f.seller, valueobject.ActionAccept)
}
