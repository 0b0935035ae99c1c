package queue_processor

import (
	"fmt"

	"github.com/isseis/go-file-sync-queue/logger"
)

// Logger defines the interface for logging operations within the processor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// loggerAdapter adapts logger.Logger to the processor's Logger interface.
type loggerAdapter struct {
	logger logger.Logger
}

// NewLoggerAdapter creates a new adapter that wraps logger.Logger.
func NewLoggerAdapter(log logger.Logger) Logger {
	return &loggerAdapter{logger: log}
}

func (a *loggerAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *loggerAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *loggerAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *loggerAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// fallbackLogger prints to stdout when no logger has been injected.
type fallbackLogger struct{}

func (f *fallbackLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DEBUG] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Info(msg string, args ...any) {
	fmt.Printf("[INFO] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WARN] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERROR] %s\n", formatLogMessage(msg, args...))
}

// formatLogMessage appends key=value pairs to msg.
// In case of an odd number of args, the last one is ignored.
func formatLogMessage(msg string, args ...any) string {
	result := msg
	for i := 0; i+1 < len(args); i += 2 {
		result += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return result
}
