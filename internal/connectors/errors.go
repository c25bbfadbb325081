package connectors

import (
	"fmt"
	"time"
)

// ThrottleError — исполнитель попросил сбавить темп (retry_after_ms в
// ответе). ReliabilityWrapper уважает эту задержку вместо стандартного
// экспоненциального бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// ExecuteError — исполнитель принял вызов, но отказал по существу
// (невалидный получатель, шаблон не найден). Это не сетевой сбой,
// ретраить такую ошибку бессмысленно.
type ExecuteError struct {
	Kind    string
	Status  string
	Message string
}

func (e *ExecuteError) Error() string {
	return fmt.Sprintf("executor rejected %s [%s]: %s", e.Kind, e.Status, e.Message)
}
