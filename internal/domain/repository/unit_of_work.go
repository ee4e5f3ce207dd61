package repository

import "context"

// Repositories объединяет репозитории, привязанные к одной транзакции.
type Repositories struct {
	Orders   OrderRepository
	Disputes DisputeRepository
}

// UnitOfWork выполняет fn атомарно: либо фиксируются все записи, либо ни одна.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
