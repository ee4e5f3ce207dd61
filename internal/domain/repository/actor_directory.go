package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

// ActorDirectory отдаёт роли и права участников.
type ActorDirectory interface {
	ResolveRole(ctx context.Context, actorID uuid.UUID) (valueobject.Role, error)
	HasCapability(ctx context.Context, actorID uuid.UUID, capability valueobject.Capability) (bool, error)
}
