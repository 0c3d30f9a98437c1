// Package clog routes log entries for individual transfers to their own
// output, falling back to the global logger for transfers that have none.
package clog

import (
	"fmt"
	"io"
	"sync"

	"github.com/apex/log"
)

const (
	GlobalLoggerCtx = "global"

	// TransferField is the entry field holding the transfer id.
	TransferField = "transfer"
)

type ContextLogger struct {
	GlobalLogger   *log.Logger
	ContextLoggers sync.Map
}

func NewContextLogger(globalLoggerWriter io.WriteCloser) *ContextLogger {
	return &ContextLogger{
		GlobalLogger: &log.Logger{
			Handler: NewHandler(globalLoggerWriter),
			Level:   log.InfoLevel,
		},
	}
}

// AddLoggingContext sends entries for the given transfer to w until the
// context is removed.
func (l *ContextLogger) AddLoggingContext(transferID string, w io.WriteCloser) {
	logger := &log.Logger{
		Handler: NewHandler(w),
		Level:   l.GlobalLogger.Level,
	}

	if old, loaded := l.ContextLoggers.Swap(transferID, logger); loaded {
		closeLogger(old)
	}
}

// RemoveLoggingContext drops a transfer's logger and closes its output. It is a
// no-op for transfers without one.
func (l *ContextLogger) RemoveLoggingContext(transferID string) {
	logger, ok := l.ContextLoggers.LoadAndDelete(transferID)
	if !ok {
		return
	}

	closeLogger(logger)
}

func (l *ContextLogger) HasLoggingContext(transferID string) bool {
	_, ok := l.ContextLoggers.Load(transferID)
	return ok
}

func (l *ContextLogger) SetLevel(ctx string, level log.Level) error {
	if ctx == GlobalLoggerCtx {
		l.GlobalLogger.Level = level
		return nil
	}

	logger := l.getContextLogger(ctx)
	if logger == nil {
		return fmt.Errorf("no such logging context %s", ctx)
	}

	logger.Level = level
	return nil
}

func (l *ContextLogger) SetLevelFromString(ctx, s string) error {
	level, err := log.ParseLevel(s)
	if err != nil {
		return err
	}

	return l.SetLevel(ctx, level)
}

// ForTransfer returns an entry tagged with the transfer id, written to the
// transfer's own output if it has one.
func (l *ContextLogger) ForTransfer(transferID string) *log.Entry {
	if logger := l.getContextLogger(transferID); logger != nil {
		return logger.WithField(TransferField, transferID)
	}

	return l.GlobalLogger.WithField(TransferField, transferID)
}

func (l *ContextLogger) Global() *log.Entry {
	return log.NewEntry(l.GlobalLogger)
}

func (l *ContextLogger) getContextLogger(ctx string) *log.Logger {
	logger, ok := l.ContextLoggers.Load(ctx)
	if !ok {
		return nil
	}

	clogger, _ := logger.(*log.Logger)
	return clogger
}

func closeLogger(logger interface{}) {
	clogger, ok := logger.(*log.Logger)
	if !ok {
		return
	}

	if h, ok := clogger.Handler.(*Handler); ok {
		h.Close()
	}
}

// SetGlobalOutput replaces the global logger's output, closing the previous
// one unless it is stdout or stderr.
func (l *ContextLogger) SetGlobalOutput(w io.WriteCloser) {
	if h, ok := l.GlobalLogger.Handler.(*Handler); ok {
		h.SetOutput(w)
	}
}

func (l *ContextLogger) GlobalLevel() log.Level {
	return l.GlobalLogger.Level
}
