package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

// UnitOfWork выполняет функцию в одной транзакции PostgreSQL.
// Записи, прочитанные по id, блокируются через FOR UPDATE NOWAIT: параллельный
// вызов получает CONCURRENT_MODIFICATION вместо ожидания.
type UnitOfWork struct {
	db *sqlx.DB
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	err := common.WithTransaction(ctx, u.db, nil, func(tx *sqlx.Tx) error {
		return fn(ctx, repository.Repositories{
			Orders:   orderStore{q: tx, lockRows: true},
			Disputes: disputeStore{q: tx, lockRows: true},
		})
	})
	return common.TranslatePgError(err, "транзакция не выполнена")
}
