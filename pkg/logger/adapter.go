package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter bundles the console logger with the optional category files
type LoggerAdapter struct {
	general     *zap.Logger
	multiLogger *MultiLogger
}

// NewLoggerAdapter creates a new logger adapter. multiLogger may be nil.
func NewLoggerAdapter(general *zap.Logger, multiLogger *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{
		general:     general,
		multiLogger: multiLogger,
	}
}

// NewNopAdapter creates an adapter that discards everything
func NewNopAdapter() *LoggerAdapter {
	return NewLoggerAdapter(zap.NewNop(), nil)
}

// General returns the console logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// Queue returns the queue logger
func (la *LoggerAdapter) Queue() *zap.Logger {
	if la.multiLogger != nil {
		return la.multiLogger.Queue()
	}
	return la.general
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	if la.multiLogger != nil {
		return la.multiLogger.Error()
	}
	return la.general
}

// LogQueueEvent records a queue lifecycle event
func (la *LoggerAdapter) LogQueueEvent(event string, fields ...zap.Field) {
	if la.multiLogger != nil {
		la.multiLogger.LogQueueEvent(event, fields...)
	}
	la.general.Debug(event, fields...)
}

// LogAppError logs an error to both the console and the error file
func (la *LoggerAdapter) LogAppError(msg string, fields ...zap.Field) {
	if la.multiLogger != nil {
		la.multiLogger.LogAppError(msg, fields...)
	}
	la.general.Error(msg, fields...)
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.multiLogger != nil {
		_ = la.multiLogger.Sync()
	}
	return la.general.Sync()
}

// GetMultiLogger returns the underlying multi-logger, possibly nil
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}
