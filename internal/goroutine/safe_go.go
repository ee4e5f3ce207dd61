package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover()
		fn()
	}()
}

func (rh *RecoveryHandler) recover() {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine: %v\n%s", r, debug.Stack())
	}
}

// DefaultRecoveryHandler пишет в стандартный логгер logrus, пока logger.Init не заменит его.
var DefaultRecoveryHandler = NewRecoveryHandler(logrus.StandardLogger())

// SetLogger заменяет логгер обработчика по умолчанию.
func SetLogger(l Logger) {
	DefaultRecoveryHandler = NewRecoveryHandler(l)
}

func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}
