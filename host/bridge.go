package host

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/scripthost/errors"
)

// LogFunc receives every message that passes the filter.
type LogFunc func(level Level, message string)

// ExceptionFunc receives descriptions of unhandled faults.
type ExceptionFunc func(description string)

// Bridge holds the host callbacks.
type Bridge struct {
	log       LogFunc
	exception ExceptionFunc
	logger    *zap.Logger
	zapLevel  zap.AtomicLevel
	mu        sync.RWMutex
	filter    Level
}

var defaultBridge = New()

// Default returns the process-wide bridge.
func Default() *Bridge {
	return defaultBridge
}

// New creates a bridge with no callbacks installed and a filter that passes
// every level.
func New() *Bridge {
	b := &Bridge{
		filter:   LevelAll,
		zapLevel: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
	b.logger = zap.New(newCore(b, b.zapLevel))
	return b
}

// Install sets the callbacks. The last call wins. exception may be nil, in
// which case exceptions are logged at error level.
func (b *Bridge) Install(log LogFunc, exception ExceptionFunc) error {
	if log == nil {
		return errors.New(errors.PhaseHost, errors.KindNullReference).Detail("log callback is nil").Build()
	}
	b.mu.Lock()
	b.log = log
	b.exception = exception
	b.mu.Unlock()
	return nil
}

// Teardown removes the callbacks. Later operations fail with
// HostNotInitialized until Install is called again.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	b.log = nil
	b.exception = nil
	b.mu.Unlock()
}

// Installed reports whether a log callback is present.
func (b *Bridge) Installed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.log != nil
}

// Check returns HostNotInitialized naming op when nothing is installed.
func (b *Bridge) Check(op string) error {
	if !b.Installed() {
		return errors.NotInitialized(op)
	}
	return nil
}

// SetFilter sets the mask of levels that reach the log callback.
func (b *Bridge) SetFilter(mask Level) {
	b.mu.Lock()
	b.filter = mask & LevelAll
	b.mu.Unlock()
}

// Filter returns the current level mask.
func (b *Bridge) Filter() Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter
}

// SetLogLevel sets the minimum zap level Logger forwards. Debug entries are
// delivered as LevelInfo.
func (b *Bridge) SetLogLevel(l zapcore.Level) {
	b.zapLevel.SetLevel(l)
}

// Logger returns a zap logger that writes through the log callback. Entries
// logged before Install are dropped.
func (b *Bridge) Logger() *zap.Logger {
	return b.logger
}

// Log sends message to the log callback if level passes the filter.
func (b *Bridge) Log(level Level, message string) error {
	b.mu.RLock()
	log, filter := b.log, b.filter
	b.mu.RUnlock()

	if log == nil {
		return errors.NotInitialized("Log")
	}
	if level&filter == 0 {
		return nil
	}
	return invoke("log callback", func() { log(level, message) })
}

// ReportException hands description to the exception callback. Without one
// it is logged at error level, and without any callback it is dropped.
// It never panics.
func (b *Bridge) ReportException(description string) {
	b.mu.RLock()
	exc, log, filter := b.exception, b.log, b.filter
	b.mu.RUnlock()

	if exc != nil {
		if err := invoke("exception callback", func() { exc(description) }); err == nil {
			return
		}
	}
	if log != nil && filter&LevelError != 0 {
		_ = invoke("log callback", func() { log(LevelError, "unhandled exception: "+description) })
	}
}

// Reportf formats and reports an exception.
func (b *Bridge) Reportf(format string, args ...any) {
	b.ReportException(fmt.Sprintf(format, args...))
}

func invoke(what string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseHost, what, r)
		}
	}()
	fn()
	return nil
}
