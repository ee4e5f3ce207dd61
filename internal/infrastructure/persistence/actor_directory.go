package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository/common"
)

type actorRow struct {
	Role         string         `db:"role"`
	Capabilities pq.StringArray `db:"capabilities"`
}

// ActorDirectory читает роли и права участников из таблицы actors.
type ActorDirectory struct {
	db *sqlx.DB
}

var _ repository.ActorDirectory = (*ActorDirectory)(nil)

func NewActorDirectory(db *sqlx.DB) *ActorDirectory {
	return &ActorDirectory{db: db}
}

func (d *ActorDirectory) find(ctx context.Context, actorID uuid.UUID) (*actorRow, error) {
	row, err := common.GetOne[actorRow](ctx, d.db, apperror.ErrActorNotFound,
		`SELECT role, capabilities FROM actors WHERE id = $1`, actorID)
	if err != nil {
		return nil, common.TranslatePgError(err, "не удалось получить участника")
	}
	return row, nil
}

func (d *ActorDirectory) ResolveRole(ctx context.Context, actorID uuid.UUID) (valueobject.Role, error) {
	row, err := d.find(ctx, actorID)
	if err != nil {
		return "", err
	}
	return valueobject.NewRole(row.Role)
}

func (d *ActorDirectory) HasCapability(ctx context.Context, actorID uuid.UUID, capability valueobject.Capability) (bool, error) {
	row, err := d.find(ctx, actorID)
	if err != nil {
		return false, err
	}
	for _, c := range row.Capabilities {
		if c == string(capability) {
			return true, nil
		}
	}
	return false, nil
}

// Upsert заводит участника или обновляет его роль и права.
func (d *ActorDirectory) Upsert(ctx context.Context, actorID uuid.UUID, role valueobject.Role, capabilities ...valueobject.Capability) error {
	caps := make(pq.StringArray, len(capabilities))
	for i, c := range capabilities {
		caps[i] = string(c)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO actors (id, role, capabilities) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, capabilities = EXCLUDED.capabilities`,
		actorID, string(role), caps)
	return common.TranslatePgError(err, "не удалось сохранить участника")
}
