package goroutine

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

func (rh *RecoveryHandler) recover(where string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in %s: %v\nstack trace:\n%s", where, r, debug.Stack())
	}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover("goroutine")
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recover("goroutine with context")
		fn(ctx)
	}()
}

// Detached отвязывает работу от отмены родительского контекста (например,
// завершённого HTTP запроса) и ограничивает её временем timeout.
func (rh *RecoveryHandler) Detached(parent context.Context, timeout time.Duration, fn func(context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()
		defer rh.recover("detached goroutine")
		fn(ctx)
	}()
}

// DefaultRecoveryHandler пишет паники в общий logrus логгер
var DefaultRecoveryHandler = NewRecoveryHandler(logger.RecoveryLogger{})

func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}

func Detached(parent context.Context, timeout time.Duration, fn func(context.Context)) {
	DefaultRecoveryHandler.Detached(parent, timeout, fn)
}
