package scanner

import "time"

// ExternalLogger is the minimal logger the scanner uses. It is implemented by
// the application's structured logger.
type ExternalLogger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

var extLogger ExternalLogger

// SetLogger injects the structured logger. Without one the scanner is silent.
func SetLogger(l ExternalLogger) {
	extLogger = l
}

func logError(msg string, kv ...interface{}) {
	if extLogger != nil {
		extLogger.Error(msg, kv...)
	}
}

func logWarn(msg string, kv ...interface{}) {
	if extLogger != nil {
		extLogger.Warn(msg, kv...)
	}
}

func logInfo(msg string, kv ...interface{}) {
	if extLogger != nil {
		extLogger.Info(msg, kv...)
	}
}

func logDebug(msg string, kv ...interface{}) {
	if extLogger != nil {
		extLogger.Debug(msg, kv...)
	}
}

type traceLogger interface {
	Trace(msg string, context ...interface{})
}

// logTrace is a no-op unless the injected logger has a trace level.
func logTrace(msg string, kv ...interface{}) {
	if l, ok := extLogger.(traceLogger); ok {
		l.Trace(msg, kv...)
	}
}

// rateLimitedLogger is implemented by loggers that can suppress repeats.
type rateLimitedLogger interface {
	WarnRateLimited(key string, interval time.Duration, msg string, context ...interface{})
}

// logWarnRateLimited warns at most once per interval for key when the
// injected logger supports it, and on every call otherwise.
func logWarnRateLimited(key string, interval time.Duration, msg string, kv ...interface{}) {
	switch l := extLogger.(type) {
	case nil:
	case rateLimitedLogger:
		l.WarnRateLimited(key, interval, msg, kv...)
	default:
		l.Warn(msg, kv...)
	}
}
