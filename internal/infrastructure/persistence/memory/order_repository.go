package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type txOrders struct {
	tx *txn
}

func (r txOrders) Create(_ context.Context, order *entity.Order) error {
	if r.tx.order(order.ID) != nil {
		return apperror.New(apperror.ErrCodeDatabaseError, "заказ с таким id уже существует")
	}
	order.Version = 1
	r.tx.orders[order.ID] = stagedOrder{order: order.Clone(), isNew: true}
	return nil
}

func (r txOrders) FindByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	o := r.tx.order(id)
	if o == nil {
		return nil, apperror.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r txOrders) Save(_ context.Context, order *entity.Order, expectedVersion int64) error {
	current := r.tx.order(order.ID)
	if current == nil {
		return apperror.ErrOrderNotFound
	}
	if current.Version != expectedVersion {
		return apperror.ErrConcurrentModification
	}
	if len(order.Logs) < len(current.Logs) {
		return apperror.New(apperror.ErrCodeInternal, "журнал заказа нельзя сокращать")
	}

	st, staged := r.tx.orders[order.ID]
	if !staged {
		st = stagedOrder{base: expectedVersion}
	}
	order.Version = expectedVersion + 1
	st.order = order.Clone()
	r.tx.orders[order.ID] = st
	return nil
}

func (r txOrders) UpdateScope(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return r.Save(ctx, order, expectedVersion)
}

func (r txOrders) ListByParticipant(_ context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	s := r.tx.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.Order, 0)
	for _, o := range s.orders {
		if filter.ParticipantID != uuid.Nil && !o.IsParticipant(filter.ParticipantID) {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(string(o.Status), filter.Status) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := len(result)

	// Apply limit/offset
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}

	page := make([]*entity.Order, 0, end-start)
	for _, o := range result[start:end] {
		page = append(page, o.Clone())
	}
	return page, total, nil
}

// orderRepository работает вне единицы работы.
type orderRepository struct {
	s *Store
}

func (r orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Orders.Create(ctx, order)
	})
}

func (r orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return txOrders{tx: r.s.begin()}.FindByID(ctx, id)
}

func (r orderRepository) Save(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return r.s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Orders.Save(ctx, order, expectedVersion)
	})
}

func (r orderRepository) UpdateScope(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return r.Save(ctx, order, expectedVersion)
}

func (r orderRepository) ListByParticipant(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	return txOrders{tx: r.s.begin()}.ListByParticipant(ctx, filter)
}
