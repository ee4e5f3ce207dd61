package common

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// Индекс, который гарантирует не больше одного активного спора на заказ.
const ActiveDisputeIndex = "uq_disputes_active_order"

// TranslatePgError переводит ошибки PostgreSQL в ошибки приложения.
// Неизвестные ошибки оборачиваются как DATABASE_ERROR с сообщением op.
func TranslatePgError(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgerrcode.LockNotAvailable, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return apperror.ErrConcurrentModification
		case pgerrcode.UniqueViolation:
			if pqErr.Constraint == ActiveDisputeIndex {
				return apperror.ErrDuplicateDispute
			}
		case pgerrcode.ForeignKeyViolation:
			return apperror.Wrap(err, apperror.ErrCodeValidation, "ссылка на несуществующую запись")
		}
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, op)
}
