package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/goroutine"
)

const DefaultTimeout = 10 * time.Second

// Dispatcher рассылает уведомления всем хукам в отдельных горутинах.
// Для каждого хука порядок уведомлений одного вызова сохраняется.
type Dispatcher struct {
	hooks   []Hook
	timeout time.Duration
	log     logrus.FieldLogger
	runner  *goroutine.RecoveryHandler
}

func NewDispatcher(log logrus.FieldLogger, timeout time.Duration, hooks ...Hook) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		hooks:   hooks,
		timeout: timeout,
		log:     log,
		runner:  goroutine.NewRecoveryHandler(log),
	}
}

// Add подключает хук. Вызывается при сборке приложения, до обработки запросов.
func (d *Dispatcher) Add(h Hook) {
	d.hooks = append(d.hooks, h)
}

func (d *Dispatcher) Notify(ctx context.Context, changes ...OrderStatusChange) {
	if len(changes) == 0 {
		return
	}
	// Запрос может завершиться раньше хуков.
	base := context.WithoutCancel(ctx)
	for _, h := range d.hooks {
		h := h
		d.runner.SafeGo(func() {
			hctx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()
			for _, c := range changes {
				if err := h.OnOrderStatusChanged(hctx, c); err != nil {
					d.log.WithFields(logrus.Fields{
						"order_id": c.OrderID,
						"action":   c.Action,
						"from":     c.From,
						"to":       c.To,
					}).WithError(err).Warn("hook failed")
				}
			}
		})
	}
}
