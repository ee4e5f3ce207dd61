package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

// SettlementJournal хранит поручения платёжному провайдеру в settlement_instructions.
type SettlementJournal struct {
	db *sqlx.DB
}

var _ repository.SettlementJournal = (*SettlementJournal)(nil)

func NewSettlementJournal(db *sqlx.DB) *SettlementJournal {
	return &SettlementJournal{db: db}
}

func (j *SettlementJournal) Record(ctx context.Context, in *entity.SettlementInstruction) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO settlement_instructions (id, order_id, kind, beneficiary_id, amount, currency, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID, in.OrderID, string(in.Kind), in.BeneficiaryID,
		in.Amount.Amount.String(), in.Amount.Currency, in.Reason, in.CreatedAt,
	)
	return common.TranslatePgError(err, "не удалось записать поручение")
}

func (j *SettlementJournal) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.SettlementInstruction, error) {
	var rows []settlementRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT id, order_id, kind, beneficiary_id, amount, currency, reason, created_at
		FROM settlement_instructions WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить поручения")
	}
	out := make([]*entity.SettlementInstruction, 0, len(rows))
	for _, r := range rows {
		amount, err := parseMoney(r.Amount, r.Currency)
		if err != nil {
			return nil, common.TranslatePgError(err, "повреждённое поручение")
		}
		out = append(out, &entity.SettlementInstruction{
			ID:            r.ID,
			OrderID:       r.OrderID,
			Kind:          entity.SettlementKind(r.Kind),
			BeneficiaryID: r.BeneficiaryID,
			Amount:        amount,
			Reason:        r.Reason,
			CreatedAt:     r.CreatedAt.UTC(),
		})
	}
	return out, nil
}
