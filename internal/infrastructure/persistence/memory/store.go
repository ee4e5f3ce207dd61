// Package memory хранит заказы и споры в памяти процесса.
// Используется в тестах и при STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type Store struct {
	mu sync.RWMutex

	orders   map[uuid.UUID]*entity.Order
	disputes map[uuid.UUID]*entity.Dispute
}

var _ repository.UnitOfWork = (*Store)(nil)

func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]*entity.Order),
		disputes: make(map[uuid.UUID]*entity.Dispute),
	}
}

// Orders возвращает репозиторий вне единицы работы: каждая запись фиксируется сразу.
func (s *Store) Orders() repository.OrderRepository {
	return orderRepository{s: s}
}

func (s *Store) Disputes() repository.DisputeRepository {
	return disputeRepository{s: s}
}

// Do выполняет fn над отложенными записями и применяет их, только если fn вернула nil
// и ни одна из затронутых сущностей не изменилась с момента чтения.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx := s.begin()
	if err := fn(ctx, tx.repositories()); err != nil {
		return err
	}
	return tx.commit()
}

type stagedOrder struct {
	order *entity.Order
	base  int64
	isNew bool
}

type stagedDispute struct {
	dispute *entity.Dispute
	base    int64
	isNew   bool
}

type txn struct {
	s        *Store
	orders   map[uuid.UUID]stagedOrder
	disputes map[uuid.UUID]stagedDispute
}

func (s *Store) begin() *txn {
	return &txn{
		s:        s,
		orders:   make(map[uuid.UUID]stagedOrder),
		disputes: make(map[uuid.UUID]stagedDispute),
	}
}

func (tx *txn) repositories() repository.Repositories {
	return repository.Repositories{
		Orders:   txOrders{tx: tx},
		Disputes: txDisputes{tx: tx},
	}
}

func (tx *txn) order(id uuid.UUID) *entity.Order {
	if st, ok := tx.orders[id]; ok {
		return st.order
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.orders[id]
}

func (tx *txn) dispute(id uuid.UUID) *entity.Dispute {
	if st, ok := tx.disputes[id]; ok {
		return st.dispute
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.disputes[id]
}

func (tx *txn) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range tx.orders {
		current, exists := s.orders[id]
		if st.isNew {
			if exists {
				return apperror.New(apperror.ErrCodeDatabaseError, "заказ с таким id уже существует")
			}
			continue
		}
		if !exists {
			return apperror.ErrOrderNotFound
		}
		if current.Version != st.base {
			return apperror.ErrConcurrentModification
		}
	}
	for id, st := range tx.disputes {
		current, exists := s.disputes[id]
		switch {
		case st.isNew && exists:
			return apperror.New(apperror.ErrCodeDatabaseError, "спор с таким id уже существует")
		case !st.isNew && !exists:
			return apperror.ErrDisputeNotFound
		case !st.isNew && current.Version != st.base:
			return apperror.ErrConcurrentModification
		}
		if st.dispute.IsActive() && s.hasOtherActive(st.dispute, tx) {
			return apperror.ErrDuplicateDispute
		}
	}

	for id, st := range tx.orders {
		s.orders[id] = st.order.Clone()
	}
	for id, st := range tx.disputes {
		s.disputes[id] = st.dispute.Clone()
	}
	return nil
}

// hasOtherActive повторяет частичный уникальный индекс PostgreSQL: один активный спор на заказ.
func (s *Store) hasOtherActive(d *entity.Dispute, tx *txn) bool {
	for id, other := range s.disputes {
		if id == d.ID || other.OrderID != d.OrderID {
			continue
		}
		if st, staged := tx.disputes[id]; staged {
			other = st.dispute
		}
		if other.IsActive() {
			return true
		}
	}
	return false
}

// Reset очищает хранилище.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[uuid.UUID]*entity.Order)
	s.disputes = make(map[uuid.UUID]*entity.Dispute)
}
