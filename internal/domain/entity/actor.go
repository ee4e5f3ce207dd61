package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

// Actor совершает действие над заказом или спором.
type Actor struct {
	ID    uuid.UUID
	Role  valueobject.Role
	Admin bool
}

// SystemActor используется для автоматических переходов.
func SystemActor() Actor {
	return Actor{Role: valueobject.RoleSystem}
}

func (a Actor) logID() *uuid.UUID {
	if a.Role == valueobject.RoleSystem || a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// IsAdmin сообщает, что роль admin подтверждена правом администрирования.
func (a Actor) IsAdmin() bool {
	return a.Role == valueobject.RoleAdmin && a.Admin
}
