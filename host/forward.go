package host

import "go.uber.org/zap"

// ForwardTo returns callbacks that write to l, for hosts that are themselves
// Go programs.
func ForwardTo(l *zap.Logger) (LogFunc, ExceptionFunc) {
	log := func(level Level, message string) {
		switch level {
		case LevelError:
			l.Error(message)
		case LevelWarning:
			l.Warn(message)
		default:
			l.Info(message)
		}
	}
	exception := func(description string) {
		l.Error("script exception", zap.String("description", description))
	}
	return log, exception
}
