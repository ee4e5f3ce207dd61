package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type txDisputes struct {
	tx *txn
}

func (r txDisputes) Create(ctx context.Context, d *entity.Dispute) error {
	if r.tx.dispute(d.ID) != nil {
		return apperror.New(apperror.ErrCodeDatabaseError, "спор с таким id уже существует")
	}
	if d.IsActive() {
		active, err := r.FindActiveByOrderID(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperror.ErrDuplicateDispute
		}
	}
	d.Version = 1
	r.tx.disputes[d.ID] = stagedDispute{dispute: d.Clone(), isNew: true}
	return nil
}

func (r txDisputes) FindByID(_ context.Context, id uuid.UUID) (*entity.Dispute, error) {
	d := r.tx.dispute(id)
	if d == nil {
		return nil, apperror.ErrDisputeNotFound
	}
	return d.Clone(), nil
}

func (r txDisputes) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	all, err := r.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if d.IsActive() {
			return d, nil
		}
	}
	return nil, nil
}

func (r txDisputes) Save(_ context.Context, d *entity.Dispute, expectedVersion int64) error {
	current := r.tx.dispute(d.ID)
	if current == nil {
		return apperror.ErrDisputeNotFound
	}
	if current.Version != expectedVersion {
		return apperror.ErrConcurrentModification
	}
	if len(d.Timeline) < len(current.Timeline) {
		return apperror.New(apperror.ErrCodeInternal, "хронологию спора нельзя сокращать")
	}

	st, staged := r.tx.disputes[d.ID]
	if !staged {
		st = stagedDispute{base: expectedVersion}
	}
	d.Version = expectedVersion + 1
	st.dispute = d.Clone()
	r.tx.disputes[d.ID] = st
	return nil
}

// ListByOrderID возвращает споры заказа от старых к новым с учётом отложенных записей.
func (r txDisputes) ListByOrderID(_ context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	s := r.tx.s
	s.mu.RLock()
	seen := make(map[uuid.UUID]*entity.Dispute)
	for id, d := range s.disputes {
		if d.OrderID == orderID {
			seen[id] = d
		}
	}
	s.mu.RUnlock()
	for id, st := range r.tx.disputes {
		if st.dispute.OrderID == orderID {
			seen[id] = st.dispute
		}
	}

	result := make([]*entity.Dispute, 0, len(seen))
	for _, d := range seen {
		result = append(result, d.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type disputeRepository struct {
	s *Store
}

func (r disputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	return r.s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Disputes.Create(ctx, d)
	})
}

func (r disputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return txDisputes{tx: r.s.begin()}.FindByID(ctx, id)
}

func (r disputeRepository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	return txDisputes{tx: r.s.begin()}.FindActiveByOrderID(ctx, orderID)
}

func (r disputeRepository) Save(ctx context.Context, d *entity.Dispute, expectedVersion int64) error {
	return r.s.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Disputes.Save(ctx, d, expectedVersion)
	})
}

func (r disputeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	return txDisputes{tx: r.s.begin()}.ListByOrderID(ctx, orderID)
}
