package notify

import (
	"context"
	"log/slog"
	"time"
)

// Level grades a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(title, message string, level Level)
}

// Notification is the payload published to listeners.
type Notification struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Level   Level     `json:"level"`
	Time    time.Time `json:"time"`
}

// Logger writes notifications to a structured logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger wraps logger as a Notifier.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Notify(title, message string, level Level) {
	l.logger.Log(context.Background(), slogLevel(level), "notification",
		slog.String("title", title),
		slog.String("message", message),
		slog.String("level", string(level)),
	)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(title, message string, level Level) {
	for _, n := range m {
		if n != nil {
			n.Notify(title, message, level)
		}
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string, Level) {}
