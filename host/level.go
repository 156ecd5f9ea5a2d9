package host

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a log severity bit. Filters combine levels into a mask.
type Level uint32

const (
	LevelInfo    Level = 1
	LevelWarning Level = 2
	LevelError   Level = 4
	LevelAll     Level = LevelInfo | LevelWarning | LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelAll:
		return "all"
	}
	var parts []string
	for _, bit := range []Level{LevelInfo, LevelWarning, LevelError} {
		if l&bit != 0 {
			parts = append(parts, bit.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// levelFor maps a zap level onto the three host levels.
func levelFor(l zapcore.Level) Level {
	switch {
	case l >= zapcore.ErrorLevel:
		return LevelError
	case l == zapcore.WarnLevel:
		return LevelWarning
	default:
		return LevelInfo
	}
}
