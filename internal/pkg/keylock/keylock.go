// Package keylock даёт неблокирующие блокировки по ключу для обнаружения
// параллельных изменений одной сущности.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

// Locker хранит множество занятых ключей. Нулевое значение готово к работе.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

// TryLock занимает ключ и возвращает функцию освобождения.
// Если ключ уже занят, возвращает false и не ждёт.
func (l *Locker) TryLock(key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}

// Held сообщает, занят ли ключ.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[key]
	return busy
}

func OrderKey(id uuid.UUID) string {
	return "order:" + id.String()
}

func DisputeKey(id uuid.UUID) string {
	return "dispute:" + id.String()
}
