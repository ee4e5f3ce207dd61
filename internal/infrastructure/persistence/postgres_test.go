package persistence

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// Тесты этого файла идут против настоящей базы: TEST_DATABASE_URL=postgres://... go test ./...
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.NewPostgres(ctx, dsn, db.DefaultPool)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type pgParties struct {
	buyer, seller, admin entity.Actor
}

func seedParties(t *testing.T, conn *sqlx.DB) pgParties {
	t.Helper()
	dir := NewActorDirectory(conn)
	p := pgParties{
		buyer:  entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer},
		seller: entity.Actor{ID: uuid.New(), Role: valueobject.RoleSeller},
		admin:  entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin, Admin: true},
	}
	ctx := context.Background()
	require.NoError(t, dir.Upsert(ctx, p.buyer.ID, valueobject.RoleBuyer))
	require.NoError(t, dir.Upsert(ctx, p.seller.ID, valueobject.RoleSeller))
	require.NoError(t, dir.Upsert(ctx, p.admin.ID, valueobject.RoleAdmin, valueobject.CapabilityAdminister))
	return p
}

func pgOrder(t *testing.T, conn *sqlx.DB, p pgParties) *entity.Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	price, err := valueobject.NewPrice("420.50", "EUR")
	require.NoError(t, err)
	o, err := entity.NewOrder(p.buyer.ID, p.seller.ID, entity.ScopeBox{
		Title:        "Перевод сайта",
		Description:  "Перевод двадцати страниц на немецкий",
		Deliverables: []string{"de.zip"},
		Deadline:     now.Add(72 * time.Hour),
		Price:        price,
		Extra:        map[string]string{"pages": "20"},
	}, entity.ContactInfo{BuyerName: "Ольга", Platform: "web"}, now)
	require.NoError(t, err)
	require.NoError(t, NewOrderRepository(conn).Create(context.Background(), o))
	return o
}

func TestPostgres_OrderRoundTrip(t *testing.T) {
	conn := testDB(t)
	p := seedParties(t, conn)
	o := pgOrder(t, conn, p)
	repo := NewOrderRepository(conn)
	ctx := context.Background()

	_, err := o.Apply(p.buyer, valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, o, 1))
	assert.Equal(t, int64(2), o.Version)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusEscrowFunded, got.Status)
	assert.Equal(t, "420.5", got.Scope.Price.Amount.String())
	assert.Equal(t, "EUR", got.Scope.Price.Currency)
	assert.Equal(t, "20", got.Scope.Extra["pages"])
	assert.Equal(t, "Ольга", got.Contact.BuyerName)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, p.buyer.ID, *got.Logs[0].ActorID)

	err = repo.Save(ctx, o, 1)
	assert.True(t, apperror.IsConcurrentModification(err))

	orders, total, err := repo.ListByParticipant(ctx, repository.OrderFilter{ParticipantID: p.seller.ID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
}

func TestPostgres_UnitOfWorkRollsBack(t *testing.T) {
	conn := testDB(t)
	p := seedParties(t, conn)
	o := pgOrder(t, conn, p)
	uow := NewUnitOfWork(conn)
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loaded, err := repos.Orders.FindByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if _, err := loaded.Apply(p.buyer, valueobject.ActionFundEscrow, entity.TransitionPayload{}, time.Now().UTC()); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, loaded, loaded.Version); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := NewOrderRepository(conn).FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPlaced, got.Status)
	assert.Empty(t, got.Logs)
}

func TestPostgres_LockedRowFailsFast(t *testing.T) {
	conn := testDB(t)
	p := seedParties(t, conn)
	o := pgOrder(t, conn, p)
	uow := NewUnitOfWork(conn)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if _, err := repos.Orders.FindByID(ctx, o.ID); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		_, err := repos.Orders.FindByID(ctx, o.ID)
		return err
	})
	assert.True(t, apperror.IsConcurrentModification(err), "got %v", err)

	close(release)
	require.NoError(t, <-done)
}

func TestPostgres_SingleActiveDispute(t *testing.T) {
	conn := testDB(t)
	p := seedParties(t, conn)
	o := pgOrder(t, conn, p)
	uow := NewUnitOfWork(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	raise := func(actor entity.Actor) error {
		return uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
			loaded, err := repos.Orders.FindByID(ctx, o.ID)
			if err != nil {
				return err
			}
			version := loaded.Version
			d, _, err := entity.RaiseDispute(loaded, nil, actor, entity.RaiseDisputeInput{
				Reason:      valueobject.ReasonQualityIssue,
				Description: "Машинный перевод",
			}, now)
			if err != nil {
				return err
			}
			if err := repos.Disputes.Create(ctx, d); err != nil {
				return err
			}
			return repos.Orders.Save(ctx, loaded, version)
		})
	}
	require.NoError(t, raise(p.buyer))

	// Второй активный спор отсекает уникальный индекс, даже если проверка в домене пропущена.
	err := uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loaded, err := repos.Orders.FindByID(ctx, o.ID)
		if err != nil {
			return err
		}
		loaded.Status = valueobject.OrderStatusInProgress
		d, _, err := entity.RaiseDispute(loaded, nil, p.seller, entity.RaiseDisputeInput{
			Reason:      valueobject.ReasonPaymentIssue,
			Description: "Повтор",
		}, now)
		if err != nil {
			return err
		}
		return repos.Disputes.Create(ctx, d)
	})
	assert.True(t, apperror.IsDuplicateDispute(err), "got %v", err)

	disputes := NewDisputeRepository(conn)
	active, err := disputes.FindActiveByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Len(t, active.Timeline, 1)
	assert.Equal(t, valueobject.DisputeStatusOpen, active.Timeline[0].ToStatus)
	assert.Equal(t, valueobject.DisputeStatus(""), active.Timeline[0].FromStatus)

	list, err := disputes.ListByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPostgres_SettlementJournal(t *testing.T) {
	conn := testDB(t)
	p := seedParties(t, conn)
	o := pgOrder(t, conn, p)
	journal := NewSettlementJournal(conn)
	ctx := context.Background()

	in := entity.NewSettlementInstruction(o.ID, entity.SettlementHold, p.buyer.ID, o.Scope.Price, "escrow", time.Now().UTC())
	require.NoError(t, journal.Record(ctx, in))

	got, err := journal.ListByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.SettlementHold, got[0].Kind)
	assert.Equal(t, "420.5", got[0].Amount.Amount.String())
}

func TestActorDirectory_Unknown(t *testing.T) {
	conn := testDB(t)
	_, err := NewActorDirectory(conn).ResolveRole(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
