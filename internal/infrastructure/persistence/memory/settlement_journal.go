package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
)

// SettlementJournal хранит поручения в памяти и пишет каждое в лог.
type SettlementJournal struct {
	mu      sync.RWMutex
	entries []*entity.SettlementInstruction
	log     logrus.FieldLogger
}

var _ repository.SettlementJournal = (*SettlementJournal)(nil)

func NewSettlementJournal(log logrus.FieldLogger) *SettlementJournal {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SettlementJournal{log: log}
}

func (j *SettlementJournal) Record(_ context.Context, in *entity.SettlementInstruction) error {
	cp := *in
	j.mu.Lock()
	j.entries = append(j.entries, &cp)
	j.mu.Unlock()

	j.log.WithFields(logrus.Fields{
		"order_id":    in.OrderID,
		"kind":        in.Kind,
		"beneficiary": in.BeneficiaryID,
		"amount":      in.Amount.String(),
	}).Info("settlement instruction recorded")
	return nil
}

func (j *SettlementJournal) ListByOrderID(_ context.Context, orderID uuid.UUID) ([]*entity.SettlementInstruction, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []*entity.SettlementInstruction
	for _, in := range j.entries {
		if in.OrderID == orderID {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}
