package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type actorRecord struct {
	role         valueobject.Role
	capabilities map[valueobject.Capability]bool
}

// Directory хранит справочник участников в памяти.
type Directory struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]actorRecord
}

var _ repository.ActorDirectory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{actors: make(map[uuid.UUID]actorRecord)}
}

// Put регистрирует участника или заменяет его роль и права.
func (d *Directory) Put(id uuid.UUID, role valueobject.Role, capabilities ...valueobject.Capability) {
	rec := actorRecord{role: role, capabilities: make(map[valueobject.Capability]bool, len(capabilities))}
	for _, c := range capabilities {
		rec.capabilities[c] = true
	}
	d.mu.Lock()
	d.actors[id] = rec
	d.mu.Unlock()
}

func (d *Directory) ResolveRole(_ context.Context, actorID uuid.UUID) (valueobject.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.actors[actorID]
	if !ok {
		return "", apperror.ErrActorNotFound
	}
	return rec.role, nil
}

func (d *Directory) HasCapability(_ context.Context, actorID uuid.UUID, capability valueobject.Capability) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.actors[actorID]
	if !ok {
		return false, apperror.ErrActorNotFound
	}
	return rec.capabilities[capability], nil
}
