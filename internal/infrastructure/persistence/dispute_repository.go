package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

const insertTimeline = `INSERT INTO dispute_timeline (dispute_id, seq, at, actor_id, action, from_status, to_status, note)`

const activeDisputeFilter = `status IN ('OPEN', 'UNDER_REVIEW', 'RESPONDED', 'MEDIATION')`

type disputeStore struct {
	q        sqlx.ExtContext
	lockRows bool
}

func (s disputeStore) Create(ctx context.Context, d *entity.Dispute) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO disputes (`+disputeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1, $20, $21)`,
		d.ID, d.OrderID, d.BuyerID, d.SellerID, string(d.RaisedBy), d.RaisedByID, string(d.Reason), d.Description,
		pqStrings(d.EvidenceURLs), string(d.Status), nil, nil, nil, d.ResolutionNotes,
		toNullID(d.ResolvedBy), nil, string(d.Priority), toNullID(d.AssignedTo), d.LastActivity,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return common.TranslatePgError(err, "не удалось создать спор")
	}
	if err := s.appendTimeline(ctx, d, 0); err != nil {
		return err
	}
	d.Version = 1
	return nil
}

func (s disputeStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if s.lockRows {
		query += ` FOR UPDATE NOWAIT`
	}
	row, err := common.GetOne[disputeRow](ctx, s.q, apperror.ErrDisputeNotFound, query, id)
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить спор")
	}
	return s.hydrate(ctx, row)
}

func (s disputeStore) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE order_id = $1 AND ` + activeDisputeFilter
	if s.lockRows {
		query += ` FOR UPDATE NOWAIT`
	}
	errNone := errors.New("no active dispute")
	row, err := common.GetOne[disputeRow](ctx, s.q, errNone, query, orderID)
	if errors.Is(err, errNone) {
		return nil, nil
	}
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить активный спор")
	}
	return s.hydrate(ctx, row)
}

func (s disputeStore) hydrate(ctx context.Context, row *disputeRow) (*entity.Dispute, error) {
	timeline, err := s.timeline(ctx, []uuid.UUID{row.ID})
	if err != nil {
		return nil, err
	}
	d, err := row.toEntity(timeline[row.ID])
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённая запись спора")
	}
	return d, nil
}

func (s disputeStore) Save(ctx context.Context, d *entity.Dispute, expectedVersion int64) error {
	args := append([]any{d.ID, expectedVersion}, disputeArgs(d)...)
	res, err := s.q.ExecContext(ctx, `
		UPDATE disputes
		SET status = $3, resolution = $4, resolution_amount = $5, resolution_currency = $6,
		    resolution_notes = $7, resolved_by = $8, resolved_at = $9, assigned_to = $10,
		    last_activity = $11, updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2`, args...)
	if err != nil {
		return common.TranslatePgError(err, "не удалось сохранить спор")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.TranslatePgError(err, "не удалось проверить результат обновления")
	}
	if n == 0 {
		var exists bool
		if err := sqlx.GetContext(ctx, s.q, &exists, `SELECT EXISTS(SELECT 1 FROM disputes WHERE id = $1)`, d.ID); err != nil {
			return common.TranslatePgError(err, "не удалось проверить спор")
		}
		if !exists {
			return apperror.ErrDisputeNotFound
		}
		return apperror.ErrConcurrentModification
	}

	var stored int
	if err := sqlx.GetContext(ctx, s.q, &stored, `SELECT COUNT(*) FROM dispute_timeline WHERE dispute_id = $1`, d.ID); err != nil {
		return common.TranslatePgError(err, "не удалось прочитать хронологию спора")
	}
	if len(d.Timeline) < stored {
		return apperror.New(apperror.ErrCodeInternal, "хронологию спора нельзя сокращать")
	}
	if err := s.appendTimeline(ctx, d, stored); err != nil {
		return err
	}
	d.Version = expectedVersion + 1
	return nil
}

func (s disputeStore) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	var rows []disputeRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить споры заказа")
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	timeline, err := s.timeline(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Dispute, 0, len(rows))
	for _, r := range rows {
		d, err := r.toEntity(timeline[r.ID])
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённая запись спора")
		}
		out = append(out, d)
	}
	return out, nil
}

func (s disputeStore) appendTimeline(ctx context.Context, d *entity.Dispute, from int) error {
	if from >= len(d.Timeline) {
		return nil
	}
	bi := common.NewBatchInserter(s.q, insertTimeline, 8, 50)
	for i := from; i < len(d.Timeline); i++ {
		e := d.Timeline[i]
		if err := bi.Add(ctx, d.ID, i, e.At, toNullID(e.ActorID), e.Action,
			string(e.FromStatus), string(e.ToStatus), e.Note); err != nil {
			return common.TranslatePgError(err, "не удалось дописать хронологию спора")
		}
	}
	if err := bi.Flush(ctx); err != nil {
		return common.TranslatePgError(err, "не удалось дописать хронологию спора")
	}
	return nil
}

func (s disputeStore) timeline(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]timelineRow, error) {
	out := make(map[uuid.UUID][]timelineRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []timelineRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT dispute_id, seq, at, actor_id, action, from_status, to_status, note
		FROM dispute_timeline WHERE dispute_id = ANY($1::uuid[]) ORDER BY dispute_id, seq`, idArray(ids))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, common.TranslatePgError(err, "не удалось получить хронологию спора")
	}
	for _, r := range rows {
		out[r.DisputeID] = append(out[r.DisputeID], r)
	}
	return out, nil
}

// DisputeRepository работает со спорами вне единицы работы.
type DisputeRepository struct {
	db *sqlx.DB
}

var _ repository.DisputeRepository = (*DisputeRepository)(nil)

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	return r.inTx(ctx, func(s disputeStore) error { return s.Create(ctx, d) })
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return disputeStore{q: r.db}.FindByID(ctx, id)
}

func (r *DisputeRepository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	return disputeStore{q: r.db}.FindActiveByOrderID(ctx, orderID)
}

func (r *DisputeRepository) Save(ctx context.Context, d *entity.Dispute, expectedVersion int64) error {
	return r.inTx(ctx, func(s disputeStore) error { return s.Save(ctx, d, expectedVersion) })
}

func (r *DisputeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	return disputeStore{q: r.db}.ListByOrderID(ctx, orderID)
}

func (r *DisputeRepository) inTx(ctx context.Context, fn func(disputeStore) error) error {
	err := common.WithTransaction(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		return fn(disputeStore{q: tx})
	})
	return common.TranslatePgError(err, "транзакция спора не выполнена")
}
