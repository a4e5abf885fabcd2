package bot

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger adapts slog to the gocron.Logger interface so scheduler
// internals log through the application logger instead of being silent.
type gocronLogger struct {
	log *slog.Logger
}

func newGocronLogger(log *slog.Logger) gocron.Logger {
	return gocronLogger{log: log}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
