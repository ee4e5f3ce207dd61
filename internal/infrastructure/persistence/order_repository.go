package persistence

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

const insertOrderLogs = `INSERT INTO order_logs (order_id, seq, at, actor_id, actor_role, action, from_status, to_status, note)`

// orderStore выполняет запросы к заказам через q: соединение или транзакцию.
// lockRows добавляет FOR UPDATE NOWAIT к чтению одной записи.
type orderStore struct {
	q        sqlx.ExtContext
	lockRows bool
}

func (s orderStore) Create(ctx context.Context, order *entity.Order) error {
	extra, contact, err := encodeOrder(order)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подготовить заказ")
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)`,
		order.ID, order.BuyerID, order.SellerID,
		order.Scope.Title, order.Scope.Description, pqStrings(order.Scope.Deliverables), order.Scope.Deadline,
		order.Scope.Price.Amount.String(), order.Scope.Price.Currency, extra,
		string(order.Status), pqStrings(order.DeliveryFiles), toNullID(order.DisputeID), contact,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return common.TranslatePgError(err, "не удалось создать заказ")
	}
	if err := s.appendLogs(ctx, order, 0); err != nil {
		return err
	}
	order.Version = 1
	return nil
}

func (s orderStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if s.lockRows {
		query += ` FOR UPDATE NOWAIT`
	}
	row, err := common.GetOne[orderRow](ctx, s.q, apperror.ErrOrderNotFound, query, id)
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить заказ")
	}
	logs, err := s.logs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return row.toEntity(logs[id])
}

func (s orderStore) Save(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	extra, contact, err := encodeOrder(order)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подготовить заказ")
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE orders
		SET title = $3, description = $4, deliverables = $5, deadline = $6, price = $7, currency = $8,
		    extra = $9, status = $10, delivery_files = $11, dispute_id = $12, contact = $13,
		    updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2`,
		order.ID, expectedVersion,
		order.Scope.Title, order.Scope.Description, pqStrings(order.Scope.Deliverables), order.Scope.Deadline,
		order.Scope.Price.Amount.String(), order.Scope.Price.Currency, extra,
		string(order.Status), pqStrings(order.DeliveryFiles), toNullID(order.DisputeID), contact,
		order.UpdatedAt,
	)
	if err != nil {
		return common.TranslatePgError(err, "не удалось сохранить заказ")
	}
	if err := s.checkUpdated(ctx, res, order.ID); err != nil {
		return err
	}

	var stored int
	if err := sqlx.GetContext(ctx, s.q, &stored, `SELECT COUNT(*) FROM order_logs WHERE order_id = $1`, order.ID); err != nil {
		return common.TranslatePgError(err, "не удалось прочитать журнал заказа")
	}
	if len(order.Logs) < stored {
		return apperror.New(apperror.ErrCodeInternal, "журнал заказа нельзя сокращать")
	}
	if err := s.appendLogs(ctx, order, stored); err != nil {
		return err
	}
	order.Version = expectedVersion + 1
	return nil
}

func (s orderStore) UpdateScope(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return s.Save(ctx, order, expectedVersion)
}

func (s orderStore) checkUpdated(ctx context.Context, res interface{ RowsAffected() (int64, error) }, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.TranslatePgError(err, "не удалось проверить результат обновления")
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return common.TranslatePgError(err, "не удалось проверить заказ")
	}
	if !exists {
		return apperror.ErrOrderNotFound
	}
	return apperror.ErrConcurrentModification
}

func (s orderStore) appendLogs(ctx context.Context, order *entity.Order, from int) error {
	if from >= len(order.Logs) {
		return nil
	}
	bi := common.NewBatchInserter(s.q, insertOrderLogs, 9, 50)
	for i := from; i < len(order.Logs); i++ {
		l := order.Logs[i]
		if err := bi.Add(ctx, order.ID, i, l.At, toNullID(l.ActorID), string(l.ActorRole),
			string(l.Action), string(l.FromStatus), string(l.ToStatus), l.Note); err != nil {
			return common.TranslatePgError(err, "не удалось дописать журнал заказа")
		}
	}
	if err := bi.Flush(ctx); err != nil {
		return common.TranslatePgError(err, "не удалось дописать журнал заказа")
	}
	return nil
}

func (s orderStore) logs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]orderLogRow, error) {
	var rows []orderLogRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT order_id, seq, at, actor_id, actor_role, action, from_status, to_status, note
		FROM order_logs WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, seq`, idArray(ids))
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить журнал заказа")
	}
	out := make(map[uuid.UUID][]orderLogRow, len(ids))
	for _, r := range rows {
		out[r.OrderID] = append(out[r.OrderID], r)
	}
	return out, nil
}

func (s orderStore) ListByParticipant(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ParticipantID != uuid.Nil {
		args = append(args, filter.ParticipantID)
		conds = append(conds, "(buyer_id = $1 OR seller_id = $1)")
	}
	if filter.Status != "" {
		args = append(args, strings.ToUpper(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	filterArgs := len(args)

	query := `SELECT ` + orderColumns + `, COUNT(*) OVER() AS total FROM orders` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	var rows []orderPageRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, 0, common.TranslatePgError(err, "не удалось получить список заказов")
	}
	if len(rows) == 0 {
		// Смещение за пределами выборки: оконная функция ничего не вернула.
		var total int
		if err := sqlx.GetContext(ctx, s.q, &total, `SELECT COUNT(*) FROM orders`+where, args[:filterArgs]...); err != nil {
			return nil, 0, common.TranslatePgError(err, "не удалось посчитать заказы")
		}
		return []*entity.Order{}, total, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	logs, err := s.logs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	orders := make([]*entity.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.toEntity(logs[r.ID])
		if err != nil {
			return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённая запись заказа")
		}
		orders = append(orders, o)
	}
	return orders, rows[0].Total, nil
}

// OrderRepository работает с заказами вне единицы работы. Каждая запись идёт в своей транзакции.
type OrderRepository struct {
	db *sqlx.DB
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.inTx(ctx, func(s orderStore) error { return s.Create(ctx, order) })
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return orderStore{q: r.db}.FindByID(ctx, id)
}

func (r *OrderRepository) Save(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return r.inTx(ctx, func(s orderStore) error { return s.Save(ctx, order, expectedVersion) })
}

func (r *OrderRepository) UpdateScope(ctx context.Context, order *entity.Order, expectedVersion int64) error {
	return r.Save(ctx, order, expectedVersion)
}

func (r *OrderRepository) ListByParticipant(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	return orderStore{q: r.db}.ListByParticipant(ctx, filter)
}

func (r *OrderRepository) inTx(ctx context.Context, fn func(orderStore) error) error {
	err := common.WithTransaction(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		return fn(orderStore{q: tx})
	})
	return common.TranslatePgError(err, "транзакция заказа не выполнена")
}

func pqStrings(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.StringArray(values)
}
