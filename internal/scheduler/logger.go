package scheduler

import "github.com/charmbracelet/log"

// cronLogger adapts the shared logger to gocron's Logger interface so the
// scheduler's internal messages carry the same prefix as our own.
type cronLogger struct {
	inner *log.Logger
}

func newLogger() cronLogger {
	return cronLogger{inner: log.Default().WithPrefix("scheduler")}
}

func (c cronLogger) Debug(msg string, args ...any) { c.inner.Debug(msg, args...) }
func (c cronLogger) Info(msg string, args ...any)  { c.inner.Info(msg, args...) }
func (c cronLogger) Warn(msg string, args ...any)  { c.inner.Warn(msg, args...) }
func (c cronLogger) Error(msg string, args ...any) { c.inner.Error(msg, args...) }
